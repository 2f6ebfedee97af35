package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"videogen-backend/cmd"
	"videogen-backend/internal/config"
	"videogen-backend/internal/database"
	"videogen-backend/internal/heygen"
	"videogen-backend/internal/messaging"
	"videogen-backend/internal/notify"
	"videogen-backend/internal/storage"
	"videogen-backend/internal/videogen"
)

func createArchive(cfg *config.Config) storage.ObjectStore {
	if cfg.ArchiveBucket != "" {
		archive, err := storage.NewS3ObjectStore(context.Background(), storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.ArchiveBucket,
		})
		if err != nil {
			log.Fatalf("Failed to create S3 archive store: %v", err)
		}
		return archive
	}

	archive, err := storage.NewLocalObjectStore(cfg.ArchiveDir)
	if err != nil {
		log.Fatalf("Failed to create local archive store: %v", err)
	}
	return archive
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	store := database.NewSQLStore(db)

	client := heygen.NewClient(heygen.Config{
		APIKey:      cfg.HeyGenAPIKey,
		BaseURL:     cfg.HeyGenBaseURL,
		VideoWidth:  cfg.VideoWidth,
		VideoHeight: cfg.VideoHeight,
	})

	orchestrator := videogen.NewOrchestrator(store, client, videogen.OrchestratorConfig{
		PollInterval:      cfg.PollInterval(),
		GenerationTimeout: cfg.GenerationTimeout(),
		MaxTextLength:     cfg.MaxTextLength,
	})

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	var wg sync.WaitGroup
	worker := messaging.Worker{
		Orchestrator: orchestrator,
		Store:        store,
		Client:       client,
		Notifier:     notify.NewWebhookNotifier(cfg.DeliveryWebhookURL),
		Archive:      createArchive(cfg),
		StagingDir:   cfg.StagingDir,
		Concurrency:  cfg.WorkerConcurrency,
		WaitGroup:    &wg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx, receiver)

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, waiting for workers to finish...")
	cancel()
	receiver.Close()
	wg.Wait()

	log.Println("Worker process stopped.")
}
