package main

import (
	"context"
	"flag"
	"log"

	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/services"
)

func main() {
	cfg := config.Load()

	email := flag.String("email", cfg.AdminEmail, "Admin email (defaults to ADMIN_EMAIL)")
	name := flag.String("name", cfg.AdminName, "Admin display name (defaults to ADMIN_NAME)")
	flag.Parse()

	logger, err := services.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := services.InitDB(cfg.DatabaseURL, services.DBOptions{LogLevel: services.GormLogLevel(config.EnvProduction), Logger: logger})
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}
	if err := services.AutoMigrate(db, logger); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	user, outcome, err := services.NewUserService(db, logger).EnsureAdmin(context.Background(), *email, *name)
	if err != nil {
		log.Fatalf("Failed to ensure admin: %v", err)
	}
	log.Printf("Admin %s (ID %d): %s", user.Email, user.ID, outcome)
}
