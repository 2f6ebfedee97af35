package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TaskUpdate carries the optional fields of a status transition. Empty
// fields are left untouched in the row.
type TaskUpdate struct {
	RenderId string
	VideoURL string
	Error    string
}

// SQLStore is the gorm-backed task repository. It implements
// videogen.Store; the orchestrator only ever sees the interface.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) GetOrCreateUser(ctx context.Context, userId int64, username string) (*User, error) {
	user := User{UserId: userId}
	err := s.db.WithContext(ctx).
		Where(User{UserId: userId}).
		Attrs(User{Username: username, RegistrationDate: time.Now().UTC()}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("error getting or creating user %d: %w", userId, err)
	}
	return &user, nil
}

func (s *SQLStore) CreateTask(ctx context.Context, task *VideoTask) error {
	if task.Status == "" {
		task.Status = TaskPending
	}
	if task.CreationTime.IsZero() {
		task.CreationTime = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("error creating video task: %w", err)
	}
	return nil
}

func (s *SQLStore) GetTask(ctx context.Context, taskId int64) (*VideoTask, error) {
	var task VideoTask
	err := s.db.WithContext(ctx).First(&task, "task_id = ?", taskId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting task %d: %w", taskId, err)
	}
	return &task, nil
}

// UpdateTaskStatus applies a status transition. The update is guarded so a
// task already in a terminal state is never modified; the returned bool
// reports whether the transition was applied.
func (s *SQLStore) UpdateTaskStatus(ctx context.Context, taskId int64, status string, update TaskUpdate) (bool, error) {
	updates := map[string]any{"status": status}
	if update.RenderId != "" {
		updates["render_id"] = update.RenderId
	}
	if update.VideoURL != "" {
		updates["video_url"] = update.VideoURL
	}
	if update.Error != "" {
		updates["error"] = update.Error
	}
	if status == TaskCompleted {
		updates["completion_time"] = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	res := s.db.WithContext(ctx).
		Model(&VideoTask{}).
		Where("task_id = ? AND status IN ?", taskId, []string{TaskPending, TaskProcessing}).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("error updating task %d status to %s: %w", taskId, status, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLStore) GetUserActiveTasks(ctx context.Context, userId int64) ([]VideoTask, error) {
	var tasks []VideoTask
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userId, []string{TaskPending, TaskProcessing}).
		Order("creation_time DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("error listing active tasks for user %d: %w", userId, err)
	}
	return tasks, nil
}

// GetActiveTasks returns every non-terminal task across all users. Used at
// startup in single-process mode to re-enqueue interrupted work.
func (s *SQLStore) GetActiveTasks(ctx context.Context) ([]VideoTask, error) {
	var tasks []VideoTask
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{TaskPending, TaskProcessing}).
		Order("creation_time ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("error listing active tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLStore) GetUserActiveTaskCount(ctx context.Context, userId int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&VideoTask{}).
		Where("user_id = ? AND status IN ?", userId, []string{TaskPending, TaskProcessing}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting active tasks for user %d: %w", userId, err)
	}
	return count, nil
}

// GetUserDailyTaskCount counts tasks created since UTC midnight of the
// process-local clock.
func (s *SQLStore) GetUserDailyTaskCount(ctx context.Context, userId int64) (int64, error) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&VideoTask{}).
		Where("user_id = ? AND creation_time >= ?", userId, dayStart).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting daily tasks for user %d: %w", userId, err)
	}
	return count, nil
}

func (s *SQLStore) IncrementUserVideoCount(ctx context.Context, userId int64) error {
	res := s.db.WithContext(ctx).
		Model(&User{UserId: userId}).
		Updates(map[string]any{
			"total_videos":      gorm.Expr("total_videos + 1"),
			"last_request_date": sql.NullTime{Time: time.Now().UTC(), Valid: true},
		})
	if res.Error != nil {
		return fmt.Errorf("error incrementing video count for user %d: %w", userId, res.Error)
	}
	return nil
}

func (s *SQLStore) GetUserHistory(ctx context.Context, userId int64, limit int) ([]VideoTask, error) {
	if limit <= 0 {
		limit = 10
	}
	var tasks []VideoTask
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("creation_time DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("error listing history for user %d: %w", userId, err)
	}
	return tasks, nil
}

// PurgeFailedTasks deletes failed rows. This is an administrative operation
// used by cmd/maintenance; the core never deletes tasks.
func (s *SQLStore) PurgeFailedTasks(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("status = ?", TaskFailed).Delete(&VideoTask{})
	if res.Error != nil {
		return 0, fmt.Errorf("error purging failed tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}
