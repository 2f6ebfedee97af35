package videogen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"videogen-backend/internal/database"
)

const statusPreviewLength = 50

// OrchestratorConfig bounds the run loop. Defaults match the provider's
// typical 2-5 minute render time.
type OrchestratorConfig struct {
	PollInterval      time.Duration
	GenerationTimeout time.Duration
	MaxTextLength     int
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PollInterval:      15 * time.Second,
		GenerationTimeout: 600 * time.Second,
		MaxTextLength:     2000,
	}
}

// Orchestrator owns the task lifecycle: creation, the submit/poll run loop,
// cancellation and status display. Dependencies are injected so tests can
// substitute fakes. Callers must not invoke Run concurrently for the same
// task id; the queue consumer guarantees at most one in-flight run per task.
type Orchestrator struct {
	store  Store
	client RenderClient
	cfg    OrchestratorConfig
}

func NewOrchestrator(store Store, client RenderClient, cfg OrchestratorConfig) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 600 * time.Second
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 2000
	}
	return &Orchestrator{store: store, client: client, cfg: cfg}
}

// CreateTask validates the input, ensures the user row exists and inserts
// the task in pending state. Returns the new task id.
func (o *Orchestrator) CreateTask(ctx context.Context, userId int64, username string, character CharacterRef, voiceId, text string) (int64, error) {
	if err := ValidateReference("character reference", character.Id); err != nil {
		return 0, err
	}
	if err := ValidateReference("voice reference", voiceId); err != nil {
		return 0, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	// Length is in characters, not bytes; multibyte scripts get the full
	// allowance.
	if utf8.RuneCountInString(text) > o.cfg.MaxTextLength {
		return 0, &ValidationError{Field: "text", Reason: fmt.Sprintf("too long, maximum is %d characters", o.cfg.MaxTextLength)}
	}

	if _, err := o.store.GetOrCreateUser(ctx, userId, username); err != nil {
		return 0, err
	}

	task := &database.VideoTask{
		UserId:        userId,
		CharacterKind: character.Kind,
		CharacterId:   character.Id,
		VoiceId:       voiceId,
		InputText:     text,
		Status:        database.TaskPending,
	}
	if err := o.store.CreateTask(ctx, task); err != nil {
		return 0, err
	}

	slog.Info("created video task", "task_id", task.TaskId, "user_id", userId, "character_kind", character.Kind)
	return task.TaskId, nil
}

// Run drives one task from submission to a terminal state. Every transition
// is persisted before any external notification happens, so a crash leaves a
// consistent record. The returned error is nil only when the task completed.
func (o *Orchestrator) Run(ctx context.Context, taskId int64) error {
	task, err := o.store.GetTask(ctx, taskId)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("run task %d: %w", taskId, ErrNotFound)
	}
	if database.TaskIsTerminal(task.Status) {
		// Already resolved, e.g. cancelled while queued.
		return nil
	}

	character := CharacterRef{Kind: task.CharacterKind, Id: task.CharacterId}
	renderId, err := o.client.Submit(ctx, character, task.VoiceId, task.InputText)
	if err != nil || renderId == "" {
		detail := "provider rejected the render request"
		if err != nil {
			detail = fmt.Sprintf("provider rejected the render request: %v", err)
		}
		o.markFailed(ctx, taskId, detail)
		slog.Error("video submission failed", "task_id", taskId, "error", err)
		return &SubmissionError{Detail: "check that the avatar and voice IDs are valid"}
	}

	// The processing status and the render id land in one update so no
	// reader ever observes a processing task without a render id.
	applied, err := o.store.UpdateTaskStatus(ctx, taskId, database.TaskProcessing, database.TaskUpdate{RenderId: renderId})
	if err != nil {
		return err
	}
	if !applied {
		// Cancelled between submission and the transition; the render is
		// abandoned (cancellation is local bookkeeping only).
		slog.Info("task reached terminal state before processing transition", "task_id", taskId)
		return nil
	}

	slog.Info("video render submitted", "task_id", taskId, "render_id", renderId)
	return o.pollUntilDone(ctx, taskId, renderId)
}

// pollUntilDone polls the provider at a fixed interval until it reports a
// terminal status or the generation budget is exhausted. Transport errors
// are absorbed and retried on the next tick, still counting against the
// overall budget.
func (o *Orchestrator) pollUntilDone(ctx context.Context, taskId int64, renderId string) error {
	deadline := time.Now().Add(o.cfg.GenerationTimeout)

	for {
		if time.Now().After(deadline) {
			o.markFailed(ctx, taskId, "video generation took too long and was abandoned")
			slog.Error("video generation timed out", "task_id", taskId, "render_id", renderId)
			return ErrGenerationTimeout
		}

		// Cooperative cancellation: a terminal state set by someone else
		// (cancel, maintenance) stops the loop without being overwritten.
		task, err := o.store.GetTask(ctx, taskId)
		if err != nil {
			return err
		}
		if task == nil || database.TaskIsTerminal(task.Status) {
			slog.Info("stopping poll loop, task no longer active", "task_id", taskId)
			return nil
		}

		update, err := o.client.PollStatus(ctx, renderId)
		if err != nil {
			slog.Warn("transient error polling render status", "task_id", taskId, "render_id", renderId, "error", err)
			if err := o.wait(ctx); err != nil {
				return err
			}
			continue
		}

		switch update.Status {
		case RenderCompleted:
			applied, err := o.store.UpdateTaskStatus(ctx, taskId, database.TaskCompleted, database.TaskUpdate{VideoURL: update.VideoURL})
			if err != nil {
				return err
			}
			if !applied {
				return nil
			}
			if err := o.store.IncrementUserVideoCount(ctx, task.UserId); err != nil {
				slog.Error("error incrementing user video count", "task_id", taskId, "user_id", task.UserId, "error", err)
			}
			slog.Info("video generation completed", "task_id", taskId, "render_id", renderId)
			return nil

		case RenderFailed:
			detail := update.Error
			if detail == "" {
				detail = "unknown provider error"
			}
			o.markFailed(ctx, taskId, detail)
			slog.Error("provider reported render failure", "task_id", taskId, "render_id", renderId, "error", detail)
			return &RenderFailedError{Detail: detail}

		default:
			if err := o.wait(ctx); err != nil {
				return err
			}
		}
	}
}

func (o *Orchestrator) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.cfg.PollInterval):
		return nil
	}
}

// markFailed records a terminal failure with a human-readable detail. The
// guarded update keeps a concurrently-set terminal state intact.
func (o *Orchestrator) markFailed(ctx context.Context, taskId int64, detail string) {
	if _, err := o.store.UpdateTaskStatus(ctx, taskId, database.TaskFailed, database.TaskUpdate{Error: detail}); err != nil {
		slog.Error("error marking task failed", "task_id", taskId, "error", err)
	}
}

// Cancel flips one active task owned by userId to failed with a cancelled
// detail. The render itself is not cancelled provider-side; the poll loop
// observes the flip and stops.
func (o *Orchestrator) Cancel(ctx context.Context, userId, taskId int64) error {
	task, err := o.store.GetTask(ctx, taskId)
	if err != nil {
		return err
	}
	if task == nil || task.UserId != userId {
		return fmt.Errorf("cancel task %d: %w", taskId, ErrNotFound)
	}
	if database.TaskIsTerminal(task.Status) {
		return fmt.Errorf("cancel task %d with status %s: %w", taskId, task.Status, ErrInvalidState)
	}

	applied, err := o.store.UpdateTaskStatus(ctx, taskId, database.TaskFailed, database.TaskUpdate{Error: "cancelled by user"})
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("cancel task %d: %w", taskId, ErrInvalidState)
	}
	slog.Info("task cancelled", "task_id", taskId, "user_id", userId)
	return nil
}

// CancelAll cancels every active task owned by userId and returns how many
// were cancelled.
func (o *Orchestrator) CancelAll(ctx context.Context, userId int64) (int, error) {
	tasks, err := o.store.GetUserActiveTasks(ctx, userId)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, task := range tasks {
		applied, err := o.store.UpdateTaskStatus(ctx, task.TaskId, database.TaskFailed, database.TaskUpdate{Error: "cancelled by user"})
		if err != nil {
			return cancelled, err
		}
		if applied {
			cancelled++
		}
	}

	slog.Info("bulk cancel finished", "user_id", userId, "cancelled", cancelled)
	return cancelled, nil
}

// StatusSummary renders the user's non-terminal tasks as display text. It
// is side-effect free.
func (o *Orchestrator) StatusSummary(ctx context.Context, userId int64) (string, error) {
	tasks, err := o.store.GetUserActiveTasks(ctx, userId)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "You have no active video generation tasks.", nil
	}

	var b strings.Builder
	for i, task := range tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		var label string
		switch task.Status {
		case database.TaskPending:
			label = "queued"
		case database.TaskProcessing:
			label = "generating, this can take 2-5 minutes"
		default:
			label = task.Status
		}
		preview := []rune(task.InputText)
		if len(preview) > statusPreviewLength {
			preview = append(preview[:statusPreviewLength], []rune("...")...)
		}
		fmt.Fprintf(&b, "Task %d (%s): %q", task.TaskId, label, string(preview))
	}
	return b.String(), nil
}
