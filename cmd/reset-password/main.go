package main

import (
	"flag"

	"go-pos-ws/internal/config"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/database"
	"go-pos-ws/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// reset-password sets a new password for an operator and ends their sessions.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if _, err := logger.Setup(cfg.LogMode, ""); err != nil {
		panic(err)
	}
	defer func() { _ = zap.L().Sync() }()

	email := flag.String("email", cfg.AdminEmail, "operator email")
	password := flag.String("password", cfg.AdminPassword, "new password")
	flag.Parse()

	if !cfg.UsesDatabase() {
		zap.L().Fatal("DATABASE_URL or DB_HOST must be set")
	}
	if len(*password) < 6 {
		zap.L().Fatal("new password must be at least 6 characters")
	}

	db, err := database.ConnectDB(cfg.DatabaseURL, false)
	if err != nil {
		zap.L().Fatal("failed to connect to database", zap.Error(err))
	}
	users := repository.NewUserRepo(db)

	user, err := users.FindByEmail(*email)
	if err != nil {
		zap.L().Fatal("user not found", zap.String("email", *email), zap.Error(err))
	}
	if err := user.SetPassword(*password); err != nil {
		zap.L().Fatal("failed to hash password", zap.Error(err))
	}
	if err := users.UpdatePassword(user.ID, user.Password); err != nil {
		zap.L().Fatal("failed to update password", zap.Error(err))
	}
	if err := users.UpdateTokenVersion(user.ID, uuid.New().String()); err != nil {
		zap.L().Fatal("failed to end existing sessions", zap.Error(err))
	}

	zap.L().Info("password reset", zap.String("email", *email))
}
