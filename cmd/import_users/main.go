package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/services"
)

func main() {
	path := flag.String("file", "", "CSV file with name and email columns (mandatory)")
	adminList := flag.String("admins", "", "Comma separated names to import as ADMIN")
	flag.Parse()

	if *path == "" {
		fmt.Println("Usage: import_users -file <users.csv> [-admins \"Name One,Name Two\"]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *path, err)
	}
	defer f.Close()

	var admins []string
	for _, a := range strings.Split(*adminList, ",") {
		if a = strings.TrimSpace(a); a != "" {
			admins = append(admins, a)
		}
	}

	cfg := config.Load()
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

	res, err := services.NewUserService(db, logger).ImportCSV(context.Background(), f, admins)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("Created: %d\nUpdated: %d\nUnchanged: %d\n", res.Created, res.Updated, res.Unchanged)
	for _, s := range res.Skipped {
		fmt.Println("Skipped:", s)
	}
}
