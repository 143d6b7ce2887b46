package service

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"satupapan/internal/board/model"
	"satupapan/internal/board/repository"
	"satupapan/socket"
)

type BoardService struct {
	Repo *repository.BoardRepository
	Hub  *socket.Hub
}

func NewBoardService(repo *repository.BoardRepository, hub *socket.Hub) *BoardService {
	return &BoardService{Repo: repo, Hub: hub}
}

func (s *BoardService) CreateBoard(userID, title string) (string, error) {
	boardID := uuid.NewString()
	if title == "" {
		title = "Untitled Board"
	}
	err := s.Repo.Create(boardID, userID, title)
	return boardID, err
}

// SaveBoard replaces a board's whole element list. Routed through the hub so
// connected peers see the saved state immediately.
func (s *BoardService) SaveBoard(userID string, req model.SaveBoardRequest) error {
	ok, role, err := s.Repo.HasAccess(req.BoardID, userID)
	if err != nil {
		return err
	}
	if !ok || role == model.RoleViewer {
		return errors.New("unauthorized: no edit permission")
	}

	var elements []model.Element
	if err := json.Unmarshal(req.Elements, &elements); err != nil {
		return errors.New("invalid elements payload")
	}

	s.Hub.SaveFromAPI(req.BoardID, userID, elements)
	return nil
}

func (s *BoardService) DeleteBoard(boardID, userID string) error {
	ownerID, err := s.Repo.GetOwnerID(boardID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return errors.New("unauthorized: only the owner can delete")
	}

	if err := s.Repo.Delete(boardID); err != nil {
		return err
	}
	s.Hub.RemoveBoard(boardID)
	return nil
}

func (s *BoardService) UpdateTitle(boardID, userID, title string) error {
	rowsAffected, err := s.Repo.UpdateTitle(boardID, title, userID)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return errors.New("board not found or unauthorized")
	}
	return nil
}

func (s *BoardService) InviteCollaborator(userID string, req model.InviteRequest) error {
	if req.Role != model.RoleEditor && req.Role != model.RoleViewer {
		return errors.New("invalid role, must be editor or viewer")
	}

	ownerID, err := s.Repo.GetOwnerID(req.BoardID)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return errors.New("unauthorized: only the owner can invite")
	}

	targetUserID, err := s.Repo.GetUserByEmail(req.Email)
	if err != nil {
		return errors.New("user not found with that email")
	}

	return s.Repo.AddCollaborator(req.BoardID, targetUserID, req.Role)
}

func (s *BoardService) ListBoards(userID string) ([]model.BoardMetadata, error) {
	return s.Repo.ListBoards(userID)
}

func (s *BoardService) ListMembers(boardID, userID string) ([]model.MemberResponse, error) {
	ok, _, err := s.Repo.HasAccess(boardID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("unauthorized or board not found")
	}
	return s.Repo.ListMembers(boardID)
}
