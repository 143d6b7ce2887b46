package repository

import (
	"database/sql"
	"encoding/json"
	"errors"

	"satupapan/internal/board/model"
	"satupapan/pkg/logger"
)

// ErrBoardNotFound is returned when a board id resolves to no row.
var ErrBoardNotFound = errors.New("board not found")

type BoardRepository struct {
	DB *sql.DB
}

func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{DB: db}
}

func (r *BoardRepository) Create(id, ownerID, title string) error {
	_, err := r.DB.Exec(`INSERT INTO boards (id, title, elements, owner_id, version, last_modified, created_at) VALUES ($1, $2, '[]', $3, 0, NOW(), NOW())`,
		id, title, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to create board: %v", err)
	}
	return err
}

// HasAccess resolves a user's role on a board. The owner is an implicit
// owner-role member; everyone else needs a collaborators row. A missing board
// surfaces as ErrBoardNotFound so callers can tell it apart from plain denial.
func (r *BoardRepository) HasAccess(boardID, userID string) (bool, string, error) {
	var ownerID string
	err := r.DB.QueryRow("SELECT owner_id FROM boards WHERE id = $1", boardID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return false, "", ErrBoardNotFound
	} else if err != nil {
		logger.Sugar.Errorf("Failed to check board owner for %s: %v", boardID, err)
		return false, "", err
	}
	if ownerID == userID {
		return true, model.RoleOwner, nil
	}

	var role string
	err = r.DB.QueryRow("SELECT role FROM collaborators WHERE board_id = $1 AND user_id = $2", boardID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return false, "", nil
	} else if err != nil {
		logger.Sugar.Errorf("Failed to check collaborator role: %v", err)
		return false, "", err
	}
	return true, role, nil
}

// LoadElements fetches the element array and version for a board.
func (r *BoardRepository) LoadElements(boardID string) ([]model.Element, int64, error) {
	var raw []byte
	var version int64
	err := r.DB.QueryRow("SELECT elements, version FROM boards WHERE id = $1", boardID).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, 0, ErrBoardNotFound
	} else if err != nil {
		logger.Sugar.Errorf("Failed to load elements for board %s: %v", boardID, err)
		return nil, 0, err
	}

	elements := []model.Element{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &elements); err != nil {
			logger.Sugar.Errorf("Corrupt element payload for board %s: %v", boardID, err)
			return nil, 0, err
		}
	}
	return elements, version, nil
}

// SaveElements writes the whole element array back, bumps the version counter
// and stamps the modifier. Returns the new version.
func (r *BoardRepository) SaveElements(boardID string, elements []model.Element, modifiedBy string) (int64, error) {
	raw, err := json.Marshal(elements)
	if err != nil {
		return 0, err
	}

	var version int64
	// lib/pq wants a string, not []byte, for JSONB parameters.
	err = r.DB.QueryRow(`UPDATE boards SET elements = $1, version = version + 1, last_modified = NOW(), last_modified_by = $2 WHERE id = $3 RETURNING version`,
		string(raw), modifiedBy, boardID).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, ErrBoardNotFound
	} else if err != nil {
		logger.Sugar.Errorf("Failed to save elements for board %s: %v", boardID, err)
		return 0, err
	}
	return version, nil
}

func (r *BoardRepository) GetOwnerID(boardID string) (string, error) {
	var ownerID string
	err := r.DB.QueryRow("SELECT owner_id FROM boards WHERE id = $1", boardID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", ErrBoardNotFound
	} else if err != nil {
		logger.Sugar.Errorf("Failed to get owner for board %s: %v", boardID, err)
	}
	return ownerID, err
}

func (r *BoardRepository) Delete(boardID string) error {
	_, err := r.DB.Exec("DELETE FROM boards WHERE id = $1", boardID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete board %s: %v", boardID, err)
	}
	return err
}

func (r *BoardRepository) UpdateTitle(boardID, title, ownerID string) (int64, error) {
	result, err := r.DB.Exec("UPDATE boards SET title = $1, last_modified = NOW() WHERE id = $2 AND owner_id = $3", title, boardID, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update title for board %s: %v", boardID, err)
		return 0, err
	}
	return result.RowsAffected()
}

func (r *BoardRepository) GetUserByEmail(email string) (string, error) {
	var userID string
	err := r.DB.QueryRow("SELECT id FROM users WHERE email = $1", email).Scan(&userID)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to get user by email %s: %v", email, err)
	}
	return userID, err
}

func (r *BoardRepository) AddCollaborator(boardID, userID, role string) error {
	_, err := r.DB.Exec(`INSERT INTO collaborators (board_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (board_id, user_id) DO UPDATE SET role = $3`, boardID, userID, role)
	if err != nil {
		logger.Sugar.Errorf("Failed to add collaborator %s to board %s: %v", userID, boardID, err)
	}
	return err
}

func (r *BoardRepository) ListBoards(userID string) ([]model.BoardMetadata, error) {
	query := `
		SELECT id, title, last_modified, owner_id FROM boards WHERE owner_id = $1
		UNION
		SELECT b.id, b.title, b.last_modified, b.owner_id FROM boards b JOIN collaborators c ON b.id = c.board_id WHERE c.user_id = $1
		ORDER BY last_modified DESC`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list boards for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	boards := []model.BoardMetadata{}
	for rows.Next() {
		var meta model.BoardMetadata
		var ownerID string
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.LastModified, &ownerID); err != nil {
			continue
		}
		meta.IsOwner = ownerID == userID
		boards = append(boards, meta)
	}
	return boards, rows.Err()
}

func (r *BoardRepository) ListMembers(boardID string) ([]model.MemberResponse, error) {
	query := `
		SELECT u.id, u.email, 'owner' AS role FROM boards b JOIN users u ON b.owner_id = u.id WHERE b.id = $1
		UNION ALL
		SELECT u.id, u.email, c.role FROM collaborators c JOIN users u ON c.user_id = u.id WHERE c.board_id = $1`
	rows, err := r.DB.Query(query, boardID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list members for board %s: %v", boardID, err)
		return nil, err
	}
	defer rows.Close()

	members := []model.MemberResponse{}
	for rows.Next() {
		var m model.MemberResponse
		if err := rows.Scan(&m.UserID, &m.Email, &m.Role); err != nil {
			continue
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
