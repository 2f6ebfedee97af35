package database

import (
	"database/sql"
	"time"
)

const (
	TaskPending    string = "pending"
	TaskProcessing string = "processing"
	TaskCompleted  string = "completed"
	TaskFailed     string = "failed"
)

const (
	CharacterAvatar       string = "avatar"
	CharacterTalkingPhoto string = "talking_photo"
)

// TaskIsTerminal reports whether a status is one of the two terminal states.
// Terminal tasks are never transitioned again.
func TaskIsTerminal(status string) bool {
	return status == TaskCompleted || status == TaskFailed
}

type User struct {
	UserId           int64  `gorm:"primaryKey"`
	Username         string `gorm:"size:255"`
	RegistrationDate time.Time
	TotalVideos      int `gorm:"default:0"`
	LastRequestDate  sql.NullTime

	Tasks []VideoTask `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`
}

type VideoTask struct {
	TaskId int64 `gorm:"primaryKey;autoIncrement"`
	UserId int64 `gorm:"not null;index"`

	CharacterKind string `gorm:"size:20;not null"`
	CharacterId   string `gorm:"size:255;not null"`
	VoiceId       string `gorm:"size:255;not null"`
	InputText     string `gorm:"type:text;not null"`

	Status   string `gorm:"size:50;not null;index"`
	RenderId string `gorm:"size:255"`
	VideoURL string `gorm:"size:500"`
	Error    string `gorm:"type:text"`

	CreationTime   time.Time `gorm:"index"`
	CompletionTime sql.NullTime
}
