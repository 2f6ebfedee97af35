package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"videogen-backend/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video_1_render-1.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake mp4 bytes"), 0644))
	return path
}

func TestNotifyCompleted(t *testing.T) {
	var deliveryId string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/deliveries", r.URL.Path)
		deliveryId = r.Header.Get("X-Delivery-Id")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "100", r.FormValue("user_id"))
		assert.Equal(t, "1", r.FormValue("task_id"))
		assert.Equal(t, "completed", r.FormValue("status"))

		file, header, err := r.FormFile("video")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "video_1_render-1.mp4", header.Filename)
	}))
	t.Cleanup(server.Close)

	notifier := notify.NewWebhookNotifier(server.URL)
	err := notifier.NotifyCompleted(context.Background(), 100, 1, stageVideo(t))
	require.NoError(t, err)
	assert.NotEmpty(t, deliveryId)
}

func TestNotifyFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "failed", r.FormValue("status"))
		assert.Equal(t, "Video generation failed. Please try again later.", r.FormValue("message"))
	}))
	t.Cleanup(server.Close)

	notifier := notify.NewWebhookNotifier(server.URL)
	err := notifier.NotifyFailed(context.Background(), 100, 1, "Video generation failed. Please try again later.")
	require.NoError(t, err)
}

func TestDeliveryErrorClassification(t *testing.T) {
	status := http.StatusInternalServerError
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	notifier := notify.NewWebhookNotifier(server.URL)
	ctx := context.Background()

	err := notifier.NotifyFailed(ctx, 100, 1, "msg")
	assert.True(t, notify.IsTransient(err))

	status = http.StatusTooManyRequests
	err = notifier.NotifyFailed(ctx, 100, 1, "msg")
	assert.True(t, notify.IsTransient(err))

	status = http.StatusBadRequest
	err = notifier.NotifyFailed(ctx, 100, 1, "msg")
	require.Error(t, err)
	assert.False(t, notify.IsTransient(err))

	// Unreachable endpoint is a transport problem.
	server.Close()
	err = notifier.NotifyFailed(ctx, 100, 1, "msg")
	assert.True(t, notify.IsTransient(err))
}
