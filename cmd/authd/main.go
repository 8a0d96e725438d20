package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"parley/internal/authserver"
	"parley/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Auth.Secret == "" {
		log.Fatal("PARLEY_AUTH_SECRET is not set")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Auth.DBPath), 0o755); err != nil {
		logger.Fatal("state directory", zap.Error(err))
	}
	users, err := authserver.OpenUserRepo(cfg.Auth.DBPath)
	if err != nil {
		logger.Fatal("open user store", zap.Error(err))
	}
	defer users.Close()

	server := authserver.NewServer(users, authserver.NewTokenIssuer(cfg.Auth.Secret), logger)

	addr := ":" + cfg.Auth.Port
	logger.Info("auth server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
