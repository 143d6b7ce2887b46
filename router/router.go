package router

import (
	"database/sql"
	"net/http"

	boardHandler "satupapan/internal/board"
	"satupapan/internal/board/repository"
	"satupapan/internal/board/service"
	"satupapan/middleware"
	"satupapan/socket"
)

func Setup(db *sql.DB, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		userName, _ := r.Context().Value(middleware.UserNameKey).(string)
		socket.ServeWs(hub, w, r, userID, userName)
	})
	mux.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// REST API
	repo := repository.NewBoardRepository(db)
	boardService := service.NewBoardService(repo, hub)
	handler := boardHandler.NewBoardHandler(boardService)
	auth := middleware.AuthMiddleware

	mux.Handle("/api/boards/create", auth(http.HandlerFunc(handler.CreateBoard)))
	mux.Handle("/api/boards/delete", auth(http.HandlerFunc(handler.DeleteBoard)))
	mux.Handle("/api/boards/update", auth(http.HandlerFunc(handler.UpdateBoard)))
	mux.Handle("/api/boards", auth(http.HandlerFunc(handler.ListBoards)))
	mux.Handle("/api/boards/invite", auth(http.HandlerFunc(handler.InviteCollaborator)))
	mux.Handle("/api/boards/members", auth(http.HandlerFunc(handler.ListMembers)))
	mux.Handle("/api/boards/save", auth(http.HandlerFunc(handler.SaveBoard)))

	return middleware.CORSMiddleware(mux)
}
