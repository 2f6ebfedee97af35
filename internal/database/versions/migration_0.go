package versions

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// Snapshot of the schema at migration 0. These types are intentionally
// decoupled from the live schema in the database package so that later
// schema changes do not rewrite history.

type User struct {
	UserId           int64  `gorm:"primaryKey"`
	Username         string `gorm:"size:255"`
	RegistrationDate time.Time
	TotalVideos      int `gorm:"default:0"`
	LastRequestDate  sql.NullTime
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

func Migration0(txn *gorm.DB) error {
	return txn.Migrator().AutoMigrate(&User{}, &VideoTask{})
}
