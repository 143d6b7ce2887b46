package board

import (
	"encoding/json"
	"net/http"

	"satupapan/internal/board/model"
	"satupapan/internal/board/service"
	"satupapan/middleware"
	"satupapan/pkg/logger"
)

type BoardHandler struct {
	Service *service.BoardService
}

func NewBoardHandler(service *service.BoardService) *BoardHandler {
	return &BoardHandler{Service: service}
}

func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	var req model.CreateBoardRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to empty

	boardID, err := h.Service.CreateBoard(userID, req.Title)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create board: %v", err)
		http.Error(w, "Failed to create board: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.CreateBoardResponse{BoardID: boardID})
}

func (h *BoardHandler) SaveBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.SaveBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Elements) == 0 || string(req.Elements) == "null" {
		http.Error(w, "Elements cannot be empty", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	if err := h.Service.SaveBoard(userID, req); err != nil {
		logger.Sugar.Errorf("Error saving board: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Board saved successfully"))
}

func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	boardID := r.URL.Query().Get("boardId")
	if boardID == "" {
		http.Error(w, "Missing boardId parameter", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	if err := h.Service.DeleteBoard(boardID, userID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete board %s: %v", boardID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Board deleted successfully"))
}

func (h *BoardHandler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	boardID := r.URL.Query().Get("boardId")
	if boardID == "" {
		http.Error(w, "Missing boardId parameter", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	var req model.UpdateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateTitle(boardID, userID, req.Title); err != nil {
		logger.Sugar.Errorf("Handler: Failed to update title for board %s: %v", boardID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Board updated successfully"))
}

func (h *BoardHandler) InviteCollaborator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	if err := h.Service.InviteCollaborator(userID, req); err != nil {
		logger.Sugar.Errorf("Handler: Failed to invite collaborator: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Collaborator added successfully"))
}

func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	boards, err := h.Service.ListBoards(userID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list boards: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(boards)
}

func (h *BoardHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	boardID := r.URL.Query().Get("boardId")
	if boardID == "" {
		http.Error(w, "Missing boardId parameter", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	members, err := h.Service.ListMembers(boardID, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(members)
}
