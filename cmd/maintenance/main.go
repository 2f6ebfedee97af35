package main

import (
	"context"
	"log"

	"videogen-backend/cmd"
	"videogen-backend/internal/config"
	"videogen-backend/internal/database"
)

// Removes failed task rows so users whose attempts all errored out get
// their daily allowance back. Meant to be run from cron.
func main() {
	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	store := database.NewSQLStore(db)

	purged, err := store.PurgeFailedTasks(context.Background())
	if err != nil {
		log.Fatalf("Failed to purge failed tasks: %v", err)
	}

	log.Printf("purged %d failed tasks", purged)
}
