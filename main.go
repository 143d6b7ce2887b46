package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"satupapan/config/database"
	"satupapan/internal/board/repository"
	"satupapan/pkg/logger"
	"satupapan/router"
	"satupapan/socket"
)

func main() {
	logger.Init()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db := database.Connect()
	defer db.Close()

	repo := repository.NewBoardRepository(db)

	hub := socket.NewHub(repo)
	go hub.Run()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Sugar.Infof("Backend listening on %s", addr)
	if err := http.ListenAndServe(addr, router.Setup(db, hub)); err != nil {
		logger.Sugar.Fatalf("Server exited: %v", err)
	}
}
