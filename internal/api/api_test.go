package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "videogen-backend/internal/api"
	"videogen-backend/internal/database"
	"videogen-backend/internal/heygen"
	"videogen-backend/internal/messaging"
	"videogen-backend/internal/videogen"
	"videogen-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

type stubRenderClient struct{}

func (stubRenderClient) Submit(ctx context.Context, character videogen.CharacterRef, voiceId, text string) (string, error) {
	return "", errors.New("not used in transport tests")
}

func (stubRenderClient) PollStatus(ctx context.Context, renderId string) (videogen.RenderUpdate, error) {
	return videogen.RenderUpdate{}, errors.New("not used in transport tests")
}

func (stubRenderClient) FetchAsset(ctx context.Context, assetURL, dest string) error {
	return errors.New("not used in transport tests")
}

type stubCatalog struct {
	avatars []heygen.Avatar
	voices  []heygen.Voice
}

func (s *stubCatalog) ListAvatars(ctx context.Context) ([]heygen.Avatar, error) {
	return s.avatars, nil
}

func (s *stubCatalog) ListVoices(ctx context.Context) ([]heygen.Voice, error) {
	return s.voices, nil
}

func setupRouter(t *testing.T, db *gorm.DB, catalog heygen.Catalog) (chi.Router, *messaging.InMemoryQueue) {
	t.Helper()
	store := database.NewSQLStore(db)
	orchestrator := videogen.NewOrchestrator(store, stubRenderClient{}, videogen.DefaultOrchestratorConfig())
	quota := videogen.NewQuotaGuard(store, 3, 5)
	queue := messaging.NewInMemoryQueue()

	service := backend.NewBackendService(store, orchestrator, quota, queue, catalog)
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router, queue
}

func postJSON(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sqlNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func get(router chi.Router, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateTask(t *testing.T) {
	db := createDB(t)
	router, queue := setupRouter(t, db, &stubCatalog{})

	rec := postJSON(t, router, "/tasks", api.CreateTaskRequest{
		UserId:    100,
		Username:  "alice",
		Character: "avatar_123abc",
		VoiceId:   "voice_1",
		Text:      "hello world",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response api.CreateTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotZero(t, response.TaskId)

	var task database.VideoTask
	require.NoError(t, db.First(&task, "task_id = ?", response.TaskId).Error)
	assert.Equal(t, database.TaskPending, task.Status)
	assert.Equal(t, database.CharacterAvatar, task.CharacterKind)

	select {
	case queued := <-queue.Tasks():
		var payload messaging.GenerateTaskPayload
		require.NoError(t, json.Unmarshal(queued.Payload(), &payload))
		assert.Equal(t, response.TaskId, payload.TaskId)
		assert.EqualValues(t, 100, payload.UserId)
	default:
		t.Fatal("expected a queued generate task")
	}
}

func TestCreateTaskClassifiesTalkingPhoto(t *testing.T) {
	db := createDB(t)
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := postJSON(t, router, "/tasks", api.CreateTaskRequest{
		UserId:    100,
		Character: "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4",
		VoiceId:   "voice_1",
		Text:      "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var task database.VideoTask
	require.NoError(t, db.First(&task).Error)
	assert.Equal(t, database.CharacterTalkingPhoto, task.CharacterKind)
}

func TestCreateTaskValidation(t *testing.T) {
	db := createDB(t)
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := postJSON(t, router, "/tasks", api.CreateTaskRequest{
		Character: "avatar_1", VoiceId: "voice_1", Text: "hello",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = postJSON(t, router, "/tasks", api.CreateTaskRequest{
		UserId: 100, Character: "bad character!", VoiceId: "voice_1", Text: "hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/tasks", api.CreateTaskRequest{
		UserId: 100, Character: "avatar_1", VoiceId: "voice_1", Text: "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTaskConcurrencyLimit(t *testing.T) {
	db := createDB(t, &database.User{UserId: 100, Username: "alice", RegistrationDate: time.Now()})
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&database.VideoTask{
			UserId: 100, CharacterKind: database.CharacterAvatar, CharacterId: "avatar_1",
			VoiceId: "voice_1", InputText: "hi", Status: database.TaskProcessing, CreationTime: time.Now().UTC(),
		}).Error)
	}
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := postJSON(t, router, "/tasks", api.CreateTaskRequest{
		UserId: 100, Character: "avatar_1", VoiceId: "voice_1", Text: "hello",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "in progress")
}

func TestCreateTaskDailyLimit(t *testing.T) {
	db := createDB(t, &database.User{UserId: 100, Username: "alice", RegistrationDate: time.Now()})
	for i := 0; i < 5; i++ {
		require.NoError(t, db.Create(&database.VideoTask{
			UserId: 100, CharacterKind: database.CharacterAvatar, CharacterId: "avatar_1",
			VoiceId: "voice_1", InputText: "hi", Status: database.TaskCompleted, CreationTime: time.Now().UTC(),
		}).Error)
	}
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := postJSON(t, router, "/tasks", api.CreateTaskRequest{
		UserId: 100, Character: "avatar_1", VoiceId: "voice_1", Text: "hello",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "daily limit")
}

func TestGetTask(t *testing.T) {
	completion := time.Now().UTC()
	db := createDB(t,
		&database.User{UserId: 100, Username: "alice", RegistrationDate: time.Now()},
		&database.VideoTask{
			TaskId: 1, UserId: 100, CharacterKind: database.CharacterAvatar, CharacterId: "avatar_1",
			VoiceId: "voice_1", InputText: "hi", Status: database.TaskCompleted,
			VideoURL: "https://cdn.example.com/v.mp4", CreationTime: time.Now().UTC(),
			CompletionTime: sqlNullTime(completion),
		},
	)
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := get(router, "/tasks/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var task api.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.EqualValues(t, 1, task.TaskId)
	assert.Equal(t, database.TaskCompleted, task.Status)
	assert.Equal(t, "https://cdn.example.com/v.mp4", task.VideoURL)
	require.NotNil(t, task.CompletionTime)
	assert.Equal(t, completion.Unix(), task.CompletionTime.Unix())

	rec = get(router, "/tasks/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(router, "/tasks/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelTask(t *testing.T) {
	db := createDB(t,
		&database.User{UserId: 100, Username: "alice", RegistrationDate: time.Now()},
		&database.VideoTask{
			TaskId: 1, UserId: 100, CharacterKind: database.CharacterAvatar, CharacterId: "avatar_1",
			VoiceId: "voice_1", InputText: "hi", Status: database.TaskPending, CreationTime: time.Now().UTC(),
		},
	)
	router, _ := setupRouter(t, db, &stubCatalog{})

	// Wrong owner looks identical to a missing task.
	rec := postJSON(t, router, "/tasks/1/cancel", api.CancelTaskRequest{UserId: 200})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, router, "/tasks/1/cancel", api.CancelTaskRequest{UserId: 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var task database.VideoTask
	require.NoError(t, db.First(&task, "task_id = ?", 1).Error)
	assert.Equal(t, database.TaskFailed, task.Status)
	assert.Equal(t, "cancelled by user", task.Error)

	rec = postJSON(t, router, "/tasks/1/cancel", api.CancelTaskRequest{UserId: 100})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(t, router, "/tasks/999/cancel", api.CancelTaskRequest{UserId: 100})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelAllTasks(t *testing.T) {
	db := createDB(t, &database.User{UserId: 100, Username: "alice", RegistrationDate: time.Now()})
	for _, status := range []string{database.TaskPending, database.TaskProcessing, database.TaskCompleted} {
		require.NoError(t, db.Create(&database.VideoTask{
			UserId: 100, CharacterKind: database.CharacterAvatar, CharacterId: "avatar_1",
			VoiceId: "voice_1", InputText: "hi", Status: status, CreationTime: time.Now().UTC(),
		}).Error)
	}
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := postJSON(t, router, "/users/100/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var response api.CancelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Cancelled)

	var completed int64
	require.NoError(t, db.Model(&database.VideoTask{}).Where("status = ?", database.TaskCompleted).Count(&completed).Error)
	assert.EqualValues(t, 1, completed)
}

func TestGetStatus(t *testing.T) {
	db := createDB(t,
		&database.User{UserId: 100, Username: "alice", RegistrationDate: time.Now()},
		&database.VideoTask{
			UserId: 100, CharacterKind: database.CharacterAvatar, CharacterId: "avatar_1",
			VoiceId: "voice_1", InputText: "a short prompt", Status: database.TaskPending, CreationTime: time.Now().UTC(),
		},
	)
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := get(router, "/users/100/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var response api.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response.Summary, "queued")
	assert.Contains(t, response.Summary, "a short prompt")

	rec = get(router, "/users/200/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response.Summary, "no active video generation tasks")
}

func TestGetHistory(t *testing.T) {
	db := createDB(t, &database.User{UserId: 100, Username: "alice", RegistrationDate: time.Now()})
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		require.NoError(t, db.Create(&database.VideoTask{
			UserId: 100, CharacterKind: database.CharacterAvatar, CharacterId: "avatar_1",
			VoiceId: "voice_1", InputText: fmt.Sprintf("prompt %d", i), Status: database.TaskCompleted,
			CreationTime: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := get(router, "/users/100/history?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []api.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].CreationTime.After(tasks[1].CreationTime))

	rec = get(router, "/users/100/history")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Len(t, tasks, 4)
}

func TestCatalogEndpoints(t *testing.T) {
	db := createDB(t)
	catalog := &stubCatalog{
		avatars: []heygen.Avatar{{AvatarId: "avatar_1", AvatarName: "Daisy", Gender: "female"}},
		voices:  []heygen.Voice{{VoiceId: "voice_1", Name: "Emma", Language: "English", Gender: "female"}},
	}
	router, _ := setupRouter(t, db, catalog)

	rec := get(router, "/avatars")
	require.Equal(t, http.StatusOK, rec.Code)
	var avatars []api.Avatar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avatars))
	assert.Equal(t, []api.Avatar{{AvatarId: "avatar_1", AvatarName: "Daisy", Gender: "female"}}, avatars)

	rec = get(router, "/voices")
	require.Equal(t, http.StatusOK, rec.Code)
	var voices []api.Voice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voices))
	assert.Equal(t, []api.Voice{{VoiceId: "voice_1", Name: "Emma", Language: "English", Gender: "female"}}, voices)
}

func TestHealth(t *testing.T) {
	db := createDB(t)
	router, _ := setupRouter(t, db, &stubCatalog{})

	rec := get(router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}
