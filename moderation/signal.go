package moderation

import (
	"context"
	"image"
)

// Signal kinds produced for a single text input.
const (
	KindNSFW      = "nsfw"
	KindOffensive = "offensive"
)

// Verdict categories.
const (
	CategoryNSFW      = "nsfw"
	CategoryOffensive = "offensive"
	CategoryInvalid   = "invalid"
)

// Signal is one classifier's output for one moderation dimension.
type Signal struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SignalSet maps signal kind (nsfw, offensive) to the classifier output for
// that kind. Every recognized kind is always present; when no classifier ran
// for a kind the entry holds that kind's safe default, so fusion never sees
// a missing key.
type SignalSet map[string]Signal

// NewSignalSet returns a SignalSet populated with safe defaults for every
// recognized kind.
func NewSignalSet() SignalSet {
	return SignalSet{
		KindNSFW:      {Label: "SAFE", Score: 0.0},
		KindOffensive: {Label: "NOT_OFFENSIVE", Score: 0.0},
	}
}

// Verdict is the sole output of the moderation engine. Immutable once
// constructed. An empty Category means no category was assigned.
type Verdict struct {
	IsSafe     bool    `json:"isSafe"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Details    any     `json:"details"`
}

// RemoteClassifier is the hosted-inference side of the classifier port. Any
// returned error means the remote path is unavailable for that call; the
// cascade falls through rather than surfacing it.
type RemoteClassifier interface {
	ClassifyText(ctx context.Context, model, text string) ([]Signal, error)
	ClassifyImage(ctx context.Context, model string, data []byte) ([]Signal, error)
}

// LocalClassifier is the in-process side of the classifier port. TextSignals
// always returns a fully-populated SignalSet (safe defaults where a model
// could not run); ImageSignal degrades to {UNKNOWN, 0.0} rather than failing.
type LocalClassifier interface {
	TextSignals(ctx context.Context, text string) SignalSet
	ImageSignal(ctx context.Context, img image.Image) Signal
}
