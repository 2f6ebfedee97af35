// Package notify hands finished videos (or failure notices) back to the
// requesting front-end. The chat transport itself is out of scope; the
// default implementation posts to a configured webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Notifier delivers results to the requesting user. Implementations must
// return errors wrapped in TransportError when the failure is a transport
// problem worth retrying.
type Notifier interface {
	NotifyCompleted(ctx context.Context, userId, taskId int64, videoPath string) error

	NotifyFailed(ctx context.Context, userId, taskId int64, message string) error
}

// TransportError marks a delivery failure as transient (timeout,
// connectivity, provider overload). The delivery retrier only retries these.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transient delivery error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient is the classifier handed to retry.Do for deliveries.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

type WebhookNotifier struct {
	client *resty.Client
}

var _ Notifier = (*WebhookNotifier)(nil)

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	client := resty.New().
		SetBaseURL(webhookURL).
		SetTimeout(60 * time.Second)
	return &WebhookNotifier{client: client}
}

// NotifyCompleted uploads the finished video as multipart form data. Each
// delivery carries an idempotency key so the receiver can deduplicate the
// retried attempts.
func (n *WebhookNotifier) NotifyCompleted(ctx context.Context, userId, taskId int64, videoPath string) error {
	res, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Delivery-Id", uuid.NewString()).
		SetFormData(map[string]string{
			"user_id": strconv.FormatInt(userId, 10),
			"task_id": strconv.FormatInt(taskId, 10),
			"status":  "completed",
		}).
		SetFile("video", videoPath).
		Post("/deliveries")
	return n.classify(res, err)
}

func (n *WebhookNotifier) NotifyFailed(ctx context.Context, userId, taskId int64, message string) error {
	res, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Delivery-Id", uuid.NewString()).
		SetFormData(map[string]string{
			"user_id": strconv.FormatInt(userId, 10),
			"task_id": strconv.FormatInt(taskId, 10),
			"status":  "failed",
			"message": message,
		}).
		Post("/deliveries")
	return n.classify(res, err)
}

// classify maps transport-level failures and retryable status codes to
// TransportError; anything else is permanent. A non-nil err from resty
// means the request never produced a response (timeout, connectivity).
func (n *WebhookNotifier) classify(res *resty.Response, err error) error {
	if err != nil {
		return &TransportError{Err: err}
	}
	if res.IsSuccess() {
		return nil
	}
	if res.StatusCode() >= 500 || res.StatusCode() == 429 {
		return &TransportError{Err: fmt.Errorf("delivery endpoint returned status %d", res.StatusCode())}
	}
	return fmt.Errorf("delivery rejected with status %d: %s", res.StatusCode(), res.String())
}
