package messaging

import (
	"context"
	"time"
)

const (
	GenerateQueue   = "video_generate_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

// Task is one queued unit of work as seen by a worker.
type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// GenerateTaskPayload asks a worker to run one video task. The task row is
// persisted before the message is published, so a consumer can always load
// it by id.
type GenerateTaskPayload struct {
	TaskId int64
	UserId int64
}

type Publisher interface {
	PublishGenerateTask(ctx context.Context, payload GenerateTaskPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
