package main

import (
	"log"

	"ai-support-be/internal/config"
	"ai-support-be/internal/model"
	"ai-support-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running migration...")
	if err := database.Migrate(db, model.All()...); err != nil {
		log.Fatalf("Error: Migration failed: %v", err)
	}
	log.Println("Database migration completed")
}
