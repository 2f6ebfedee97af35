// Package api holds the request and response shapes of the HTTP surface.
package api

import "time"

type CreateTaskRequest struct {
	UserId    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Character string `json:"character"`
	VoiceId   string `json:"voice_id"`
	Text      string `json:"text"`
}

type CancelTaskRequest struct {
	UserId int64 `json:"user_id"`
}

type CreateTaskResponse struct {
	TaskId  int64  `json:"task_id"`
	Message string `json:"message"`
}

type Task struct {
	TaskId         int64      `json:"task_id"`
	UserId         int64      `json:"user_id"`
	CharacterKind  string     `json:"character_kind"`
	CharacterId    string     `json:"character_id"`
	VoiceId        string     `json:"voice_id"`
	Status         string     `json:"status"`
	VideoURL       string     `json:"video_url,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreationTime   time.Time  `json:"creation_time"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
}

type StatusResponse struct {
	Summary string `json:"summary"`
}

type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}

type HistoryParams struct {
	Limit int `schema:"limit"`
}

type Avatar struct {
	AvatarId   string `json:"avatar_id"`
	AvatarName string `json:"avatar_name"`
	Gender     string `json:"gender"`
	PreviewURL string `json:"preview_image_url"`
}

type Voice struct {
	VoiceId  string `json:"voice_id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}
