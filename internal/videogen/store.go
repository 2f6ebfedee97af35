package videogen

import (
	"context"

	"videogen-backend/internal/database"
)

// Store is the task repository consumed by the orchestrator and quota
// guard. The gorm implementation lives in internal/database; tests
// substitute fakes. The repository is the single source of truth for task
// state, there is no authoritative in-memory cache.
type Store interface {
	GetOrCreateUser(ctx context.Context, userId int64, username string) (*database.User, error)

	CreateTask(ctx context.Context, task *database.VideoTask) error

	// GetTask returns nil without error when no such task exists.
	GetTask(ctx context.Context, taskId int64) (*database.VideoTask, error)

	// UpdateTaskStatus applies a transition and reports whether it took
	// effect. A task already in a terminal state is left untouched and
	// false is returned.
	UpdateTaskStatus(ctx context.Context, taskId int64, status string, update database.TaskUpdate) (bool, error)

	GetUserActiveTasks(ctx context.Context, userId int64) ([]database.VideoTask, error)

	GetUserActiveTaskCount(ctx context.Context, userId int64) (int64, error)

	GetUserDailyTaskCount(ctx context.Context, userId int64) (int64, error)

	IncrementUserVideoCount(ctx context.Context, userId int64) error

	GetUserHistory(ctx context.Context, userId int64, limit int) ([]database.VideoTask, error)
}
