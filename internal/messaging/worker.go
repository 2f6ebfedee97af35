package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"videogen-backend/internal/database"
	"videogen-backend/internal/notify"
	"videogen-backend/internal/retry"
	"videogen-backend/internal/storage"
	"videogen-backend/internal/videogen"
)

// Worker consumes generate-tasks and drives each one through the
// orchestrator, then delivers the finished asset. Because the queue hands a
// message to exactly one consumer, at most one Run is in flight per task id.
type Worker struct {
	Orchestrator *videogen.Orchestrator
	Store        videogen.Store
	Client       videogen.RenderClient
	Notifier     notify.Notifier
	Archive      storage.ObjectStore
	StagingDir   string
	Concurrency  int
	RetryPolicy  retry.Policy
	WaitGroup    *sync.WaitGroup
}

// Start launches the consumer goroutines. They exit when the receiver's
// task channel closes.
func (w *Worker) Start(ctx context.Context, receiver Receiver) {
	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if w.RetryPolicy.MaxAttempts == 0 {
		w.RetryPolicy = retry.DefaultPolicy()
	}

	slog.Info("starting workers", "concurrency", concurrency)

	w.WaitGroup.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go w.runInstance(ctx, i, receiver)
	}
}

func (w *Worker) runInstance(ctx context.Context, id int, receiver Receiver) {
	defer w.WaitGroup.Done()

	for task := range receiver.Tasks() {
		if err := w.handleTask(ctx, task); err != nil {
			slog.Error("error handling task", "worker", id, "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting task", "worker", id, "error", err)
			}
			continue
		}
		if err := task.Ack(); err != nil {
			slog.Error("error acking task", "worker", id, "error", err)
		}
	}

	slog.Info("worker stopped", "worker", id)
}

func (w *Worker) handleTask(ctx context.Context, task Task) error {
	if task.Type() != GenerateQueue {
		return fmt.Errorf("unknown task type %s", task.Type())
	}

	var payload GenerateTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid generate task payload: %w", err)
	}

	w.processGenerateTask(ctx, payload)
	return nil
}

// processGenerateTask runs one task end to end. Run failures are already
// persisted on the task row by the orchestrator; this layer only reports
// the outcome to the user.
func (w *Worker) processGenerateTask(ctx context.Context, payload GenerateTaskPayload) {
	if err := w.Orchestrator.Run(ctx, payload.TaskId); err != nil {
		w.notifyFailure(ctx, payload, err)
		return
	}

	task, err := w.Store.GetTask(ctx, payload.TaskId)
	if err != nil || task == nil {
		slog.Error("error reloading task after run", "task_id", payload.TaskId, "error", err)
		return
	}
	if task.Status != database.TaskCompleted {
		// Cancelled while running; nothing to deliver.
		return
	}

	w.deliver(ctx, task)
}

// deliver stages the asset locally, archives it and hands it to the
// notifier with bounded retry. The staged copy is always discarded.
func (w *Worker) deliver(ctx context.Context, task *database.VideoTask) {
	filename := fmt.Sprintf("video_%d_%s.mp4", task.TaskId, task.RenderId)
	staged := filepath.Join(w.StagingDir, filename)

	if err := os.MkdirAll(w.StagingDir, os.ModePerm); err != nil {
		slog.Error("error creating staging directory", "dir", w.StagingDir, "error", err)
		return
	}

	if err := w.Client.FetchAsset(ctx, task.VideoURL, staged); err != nil {
		slog.Error("error downloading finished video", "task_id", task.TaskId, "error", err)
		w.notifyFailure(ctx, GenerateTaskPayload{TaskId: task.TaskId, UserId: task.UserId},
			fmt.Errorf("the video was generated but could not be downloaded"))
		return
	}
	defer func() {
		if err := os.Remove(staged); err != nil {
			slog.Warn("error removing staged video", "path", staged, "error", err)
		}
	}()

	w.archive(ctx, task, staged)

	err := retry.Do(ctx, w.RetryPolicy, notify.IsTransient, func(ctx context.Context) error {
		return w.Notifier.NotifyCompleted(ctx, task.UserId, task.TaskId, staged)
	})
	if err != nil {
		slog.Error("video delivery failed after retries", "task_id", task.TaskId, "error", err)
		return
	}

	slog.Info("video delivered", "task_id", task.TaskId, "user_id", task.UserId)
}

func (w *Worker) archive(ctx context.Context, task *database.VideoTask, staged string) {
	if w.Archive == nil {
		return
	}

	f, err := os.Open(staged)
	if err != nil {
		slog.Error("error opening staged video for archive", "path", staged, "error", err)
		return
	}
	defer f.Close()

	key := fmt.Sprintf("videos/%d/%s.mp4", task.UserId, task.RenderId)
	if err := w.Archive.PutObject(ctx, key, f); err != nil {
		// Archival is best effort; delivery proceeds regardless.
		slog.Error("error archiving video", "task_id", task.TaskId, "key", key, "error", err)
		return
	}
	slog.Info("video archived", "task_id", task.TaskId, "key", key)
}

// notifyFailure sends a failure notice. Failure notices are best effort and
// use the same retry policy as deliveries.
func (w *Worker) notifyFailure(ctx context.Context, payload GenerateTaskPayload, cause error) {
	var renderFailed *videogen.RenderFailedError

	message := "Video generation failed. Please try again later."
	switch {
	case videogen.IsSubmissionError(cause):
		message = "Could not start video generation. Check that the avatar and voice IDs are valid."
	case videogen.IsTimeout(cause):
		message = "Video generation took too long and was abandoned. Please try again."
	case errors.As(cause, &renderFailed):
		message = fmt.Sprintf("Video generation failed: %s", renderFailed.Detail)
	}

	err := retry.Do(ctx, w.RetryPolicy, notify.IsTransient, func(ctx context.Context) error {
		return w.Notifier.NotifyFailed(ctx, payload.UserId, payload.TaskId, message)
	})
	if err != nil {
		slog.Error("failure notice could not be delivered", "task_id", payload.TaskId, "error", err)
	}
}
