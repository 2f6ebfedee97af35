package videogen

import "context"

// Render statuses as reported by the provider.
const (
	RenderPending    string = "pending"
	RenderProcessing string = "processing"
	RenderCompleted  string = "completed"
	RenderFailed     string = "failed"
)

// RenderUpdate is one provider status observation. VideoURL is set once
// Status is completed; Error carries the provider's failure text when
// Status is failed.
type RenderUpdate struct {
	Status   string
	VideoURL string
	Error    string
}

// RenderClient is the abstract rendering capability the orchestrator drives.
// An error return means the provider could not be reached (a transport
// problem, retried by the caller); a provider-reported failure arrives as a
// RenderUpdate with a failed status and is terminal.
type RenderClient interface {
	// Submit starts a render and returns the provider-assigned render id.
	Submit(ctx context.Context, character CharacterRef, voiceId, text string) (string, error)

	// PollStatus fetches the current state of a render.
	PollStatus(ctx context.Context, renderId string) (RenderUpdate, error)

	// FetchAsset downloads a finished asset to a local path.
	FetchAsset(ctx context.Context, assetURL, dest string) error
}
