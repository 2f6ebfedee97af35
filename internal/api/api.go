package api

import (
	"errors"
	"log/slog"
	"net/http"

	"videogen-backend/internal/database"
	"videogen-backend/internal/heygen"
	"videogen-backend/internal/messaging"
	"videogen-backend/internal/videogen"
	"videogen-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

// BackendService is the transport adapter: it translates HTTP requests
// into orchestrator calls and renders results back. All business rules
// live behind the orchestrator and quota guard.
type BackendService struct {
	store        videogen.Store
	orchestrator *videogen.Orchestrator
	quota        *videogen.QuotaGuard
	publisher    messaging.Publisher
	catalog      heygen.Catalog
}

func NewBackendService(store videogen.Store, orchestrator *videogen.Orchestrator, quota *videogen.QuotaGuard, publisher messaging.Publisher, catalog heygen.Catalog) *BackendService {
	return &BackendService{
		store:        store,
		orchestrator: orchestrator,
		quota:        quota,
		publisher:    publisher,
		catalog:      catalog,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateTask))
		r.Get("/{task_id}", RestHandler(s.GetTask))
		r.Post("/{task_id}/cancel", RestHandler(s.CancelTask))
	})
	r.Route("/users/{user_id}", func(r chi.Router) {
		r.Get("/status", RestHandler(s.GetStatus))
		r.Post("/cancel", RestHandler(s.CancelAll))
		r.Get("/history", RestHandler(s.GetHistory))
	})
	r.Get("/avatars", RestHandler(s.ListAvatars))
	r.Get("/voices", RestHandler(s.ListVoices))
}

func (s *BackendService) CreateTask(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateTaskRequest](r)
	if err != nil {
		return nil, err
	}
	if req.UserId == 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "missing required field: user_id")
	}

	ctx := r.Context()

	eligible, reason, err := s.quota.CheckEligibility(ctx, req.UserId)
	if err != nil {
		slog.Error("error checking quota", "user_id", req.UserId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error checking quota")
	}
	if !eligible {
		return nil, CodedErrorf(http.StatusTooManyRequests, "%s", reason)
	}

	// The 32-hex talking-photo classification happens once, here at the
	// transport boundary, and is stored on the task.
	character := videogen.ParseCharacterRef(req.Character)

	taskId, err := s.orchestrator.CreateTask(ctx, req.UserId, req.Username, character, req.VoiceId, req.Text)
	if err != nil {
		if videogen.IsValidationError(err) {
			return nil, CodedError(http.StatusBadRequest, err)
		}
		slog.Error("error creating task", "user_id", req.UserId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create video task")
	}

	payload := messaging.GenerateTaskPayload{TaskId: taskId, UserId: req.UserId}
	if err := s.publisher.PublishGenerateTask(ctx, payload); err != nil {
		slog.Error("error publishing generate task", "task_id", taskId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue video task")
	}

	slog.Info("submitted video task", "task_id", taskId, "user_id", req.UserId)
	return api.CreateTaskResponse{TaskId: taskId, Message: "Video generation task submitted"}, nil
}

func (s *BackendService) GetTask(r *http.Request) (any, error) {
	taskId, err := URLParamInt64(r, "task_id")
	if err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(r.Context(), taskId)
	if err != nil {
		slog.Error("error getting task", "task_id", taskId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving task record")
	}
	if task == nil {
		return nil, CodedErrorf(http.StatusNotFound, "task not found")
	}

	return convertTask(*task), nil
}

func (s *BackendService) CancelTask(r *http.Request) (any, error) {
	taskId, err := URLParamInt64(r, "task_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.CancelTaskRequest](r)
	if err != nil {
		return nil, err
	}

	if err := s.orchestrator.Cancel(r.Context(), req.UserId, taskId); err != nil {
		switch {
		case errors.Is(err, videogen.ErrNotFound):
			return nil, CodedErrorf(http.StatusNotFound, "task not found")
		case errors.Is(err, videogen.ErrInvalidState):
			return nil, CodedErrorf(http.StatusConflict, "task is no longer active")
		default:
			slog.Error("error cancelling task", "task_id", taskId, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "error cancelling task")
		}
	}

	return api.CancelResponse{Cancelled: 1}, nil
}

func (s *BackendService) GetStatus(r *http.Request) (any, error) {
	userId, err := URLParamInt64(r, "user_id")
	if err != nil {
		return nil, err
	}

	summary, err := s.orchestrator.StatusSummary(r.Context(), userId)
	if err != nil {
		slog.Error("error building status summary", "user_id", userId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving status")
	}

	return api.StatusResponse{Summary: summary}, nil
}

func (s *BackendService) CancelAll(r *http.Request) (any, error) {
	userId, err := URLParamInt64(r, "user_id")
	if err != nil {
		return nil, err
	}

	cancelled, err := s.orchestrator.CancelAll(r.Context(), userId)
	if err != nil {
		slog.Error("error bulk cancelling tasks", "user_id", userId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error cancelling tasks")
	}

	return api.CancelResponse{Cancelled: cancelled}, nil
}

func (s *BackendService) GetHistory(r *http.Request) (any, error) {
	userId, err := URLParamInt64(r, "user_id")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.HistoryParams](r)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.GetUserHistory(r.Context(), userId, params.Limit)
	if err != nil {
		slog.Error("error getting history", "user_id", userId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving history")
	}

	result := make([]api.Task, len(tasks))
	for i, task := range tasks {
		result[i] = convertTask(task)
	}
	return result, nil
}

func (s *BackendService) ListAvatars(r *http.Request) (any, error) {
	avatars, err := s.catalog.ListAvatars(r.Context())
	if err != nil {
		slog.Error("error listing avatars", "error", err)
		return nil, CodedErrorf(http.StatusBadGateway, "error listing avatars")
	}

	result := make([]api.Avatar, len(avatars))
	for i, a := range avatars {
		result[i] = api.Avatar{AvatarId: a.AvatarId, AvatarName: a.AvatarName, Gender: a.Gender, PreviewURL: a.PreviewURL}
	}
	return result, nil
}

func (s *BackendService) ListVoices(r *http.Request) (any, error) {
	voices, err := s.catalog.ListVoices(r.Context())
	if err != nil {
		slog.Error("error listing voices", "error", err)
		return nil, CodedErrorf(http.StatusBadGateway, "error listing voices")
	}

	result := make([]api.Voice, len(voices))
	for i, v := range voices {
		result[i] = api.Voice{VoiceId: v.VoiceId, Name: v.Name, Language: v.Language, Gender: v.Gender}
	}
	return result, nil
}

func convertTask(task database.VideoTask) api.Task {
	converted := api.Task{
		TaskId:        task.TaskId,
		UserId:        task.UserId,
		CharacterKind: task.CharacterKind,
		CharacterId:   task.CharacterId,
		VoiceId:       task.VoiceId,
		Status:        task.Status,
		VideoURL:      task.VideoURL,
		Error:         task.Error,
		CreationTime:  task.CreationTime,
	}
	if task.CompletionTime.Valid {
		t := task.CompletionTime.Time
		converted.CompletionTime = &t
	}
	return converted
}
