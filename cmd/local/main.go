package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"videogen-backend/cmd"
	"videogen-backend/internal/api"
	"videogen-backend/internal/config"
	"videogen-backend/internal/database"
	"videogen-backend/internal/heygen"
	"videogen-backend/internal/messaging"
	"videogen-backend/internal/notify"
	"videogen-backend/internal/storage"
	"videogen-backend/internal/videogen"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// createQueue re-enqueues tasks that were still active when the previous
// process stopped. A restart may re-poll a render that is already underway;
// the orchestrator tolerates that.
func createQueue(store *database.SQLStore) *messaging.InMemoryQueue {
	queue := messaging.NewInMemoryQueue()

	tasks, err := store.GetActiveTasks(context.Background())
	if err != nil {
		log.Fatalf("Failed to fetch tasks from database: %v", err)
	}

	for _, task := range tasks {
		payload := messaging.GenerateTaskPayload{TaskId: task.TaskId, UserId: task.UserId}
		if err := queue.PublishGenerateTask(context.Background(), payload); err != nil {
			log.Fatalf("Failed to re-enqueue task %d: %v", task.TaskId, err)
		}
	}

	if len(tasks) > 0 {
		log.Printf("re-enqueued %d active tasks", len(tasks))
	}

	return queue
}

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
	quota := videogen.NewQuotaGuard(store, cfg.MaxConcurrentTasks, cfg.MaxDailyRequests)

	queue := createQueue(store)

	archive, err := storage.NewLocalObjectStore(cfg.ArchiveDir)
	if err != nil {
		log.Fatalf("Failed to create local archive store: %v", err)
	}

	var wg sync.WaitGroup
	worker := messaging.Worker{
		Orchestrator: orchestrator,
		Store:        store,
		Client:       client,
		Notifier:     notify.NewWebhookNotifier(cfg.DeliveryWebhookURL),
		Archive:      archive,
		StagingDir:   cfg.StagingDir,
		Concurrency:  cfg.WorkerConcurrency,
		WaitGroup:    &wg,
	}

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx, queue)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(store, orchestrator, quota, queue, client)
	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		cancel()
		queue.Close()
		wg.Wait()
	}()

	log.Printf("local server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Stopped.")
}
