// Package heygen implements the rendering provider client against the
// HeyGen HTTP API. The orchestrator consumes it through the
// videogen.RenderClient interface; the avatar and voice catalog below is
// used only by the transport layer.
package heygen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"videogen-backend/internal/database"
	"videogen-backend/internal/videogen"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.heygen.com"

	requestTimeout  = 30 * time.Second
	downloadTimeout = 300 * time.Second
)

type Config struct {
	APIKey      string
	BaseURL     string
	VideoWidth  int
	VideoHeight int
}

type Client struct {
	client   *resty.Client
	download *resty.Client
	cfg      Config
}

var _ videogen.RenderClient = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VideoWidth <= 0 {
		cfg.VideoWidth = 1920
	}
	if cfg.VideoHeight <= 0 {
		cfg.VideoHeight = 1080
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(requestTimeout).
		SetHeader("X-Api-Key", cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	// Asset downloads hit provider-signed URLs outside the API host and
	// take much longer than control-plane calls.
	download := resty.New().SetTimeout(downloadTimeout)

	return &Client{client: client, download: download, cfg: cfg}
}

type generateResponse struct {
	Data struct {
		VideoId string `json:"video_id"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Submit starts a render. The character payload shape depends on whether
// the task references a stock avatar or a talking photo.
func (c *Client) Submit(ctx context.Context, character videogen.CharacterRef, voiceId, text string) (string, error) {
	var characterPayload map[string]any
	if character.Kind == database.CharacterTalkingPhoto {
		characterPayload = map[string]any{
			"type":             "talking_photo",
			"talking_photo_id": character.Id,
		}
	} else {
		characterPayload = map[string]any{
			"type":         "avatar",
			"avatar_id":    character.Id,
			"avatar_style": "normal",
		}
	}

	body := map[string]any{
		"video_inputs": []map[string]any{
			{
				"character": characterPayload,
				"voice": map[string]any{
					"type":       "text",
					"voice_id":   voiceId,
					"input_text": text,
				},
			},
		},
		"dimension": map[string]any{
			"width":  c.cfg.VideoWidth,
			"height": c.cfg.VideoHeight,
		},
	}

	var parsed generateResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&parsed).
		Post("/v2/video/generate")
	if err != nil {
		return "", fmt.Errorf("heygen generate request failed: %w", err)
	}
	if !res.IsSuccess() {
		slog.Error("heygen generate returned error", "status_code", res.StatusCode(), "body", res.String())
		return "", fmt.Errorf("heygen generate returned status %d", res.StatusCode())
	}
	if parsed.Data.VideoId == "" {
		if parsed.Error != nil {
			return "", fmt.Errorf("heygen generate rejected: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("heygen generate returned no video id")
	}

	slog.Info("video generation initiated", "render_id", parsed.Data.VideoId)
	return parsed.Data.VideoId, nil
}

type statusResponse struct {
	Data struct {
		Status   string `json:"status"`
		VideoURL string `json:"video_url"`
		Error    string `json:"error"`
	} `json:"data"`
}

func (c *Client) PollStatus(ctx context.Context, renderId string) (videogen.RenderUpdate, error) {
	var parsed statusResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get("/v2/video/" + renderId)
	if err != nil {
		return videogen.RenderUpdate{}, fmt.Errorf("heygen status request failed: %w", err)
	}
	if !res.IsSuccess() {
		slog.Error("heygen status returned error", "status_code", res.StatusCode(), "body", res.String())
		return videogen.RenderUpdate{}, fmt.Errorf("heygen status returned status %d", res.StatusCode())
	}

	return videogen.RenderUpdate{
		Status:   parsed.Data.Status,
		VideoURL: parsed.Data.VideoURL,
		Error:    parsed.Data.Error,
	}, nil
}

// FetchAsset downloads a finished video to dest.
func (c *Client) FetchAsset(ctx context.Context, assetURL, dest string) error {
	res, err := c.download.R().
		SetContext(ctx).
		SetOutput(dest).
		Get(assetURL)
	if err != nil {
		return fmt.Errorf("video download failed: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("video download returned status %d", res.StatusCode())
	}
	slog.Info("video downloaded", "dest", dest)
	return nil
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

type avatarListResponse struct {
	Data struct {
		Avatars []Avatar `json:"avatars"`
	} `json:"data"`
}

type voiceListResponse struct {
	Data struct {
		Voices []Voice `json:"voices"`
	} `json:"data"`
}

// Catalog lists the avatars and voices available to the account. It is
// consumed by the transport layer only, never by the orchestrator.
type Catalog interface {
	ListAvatars(ctx context.Context) ([]Avatar, error)
	ListVoices(ctx context.Context) ([]Voice, error)
}

var _ Catalog = (*Client)(nil)

func (c *Client) ListAvatars(ctx context.Context) ([]Avatar, error) {
	var parsed avatarListResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get("/v2/avatars")
	if err != nil {
		return nil, fmt.Errorf("heygen avatar list request failed: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("heygen avatar list returned status %d", res.StatusCode())
	}
	return parsed.Data.Avatars, nil
}

func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	var parsed voiceListResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get("/v2/voices")
	if err != nil {
		return nil, fmt.Errorf("heygen voice list request failed: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("heygen voice list returned status %d", res.StatusCode())
	}
	return parsed.Data.Voices, nil
}
