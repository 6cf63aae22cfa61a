package moderation

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/odan-platform/sentinel/moderation/verdictcache"

	"golang.org/x/sync/errgroup"
)

// CascadeOutcome is the terminal state of one fallback cascade run.
type CascadeOutcome string

const (
	CascadeRemote      CascadeOutcome = "remote"
	CascadeLocal       CascadeOutcome = "local"
	CascadeUnavailable CascadeOutcome = "unavailable"
)

// Outer bound on text accepted for classification. The local provider applies
// its own tighter 512-char bound before inference.
const maxTextChars = 2000

// EngineConfig holds the tunable moderation parameters.
type EngineConfig struct {
	TextNSFWModel      string
	TextOffensiveModel string
	ImageNSFWModel     string
	NSFWThreshold      float64
	OffensiveThreshold float64
}

// Engine composes the fallback cascade and signal fusion behind the two
// moderate entry points. Remote and Local may each be nil (no API token
// configured, or local fallback disabled); a nil Cache disables verdict
// caching. Engines are safe for concurrent use.
type Engine struct {
	Logger *slog.Logger
	Remote RemoteClassifier
	Local  LocalClassifier
	Cache  verdictcache.Store
	Config EngineConfig
}

// ModerateText produces a safety verdict for raw text. Failure anywhere in
// the cascade degrades to an allow-biased verdict; it never returns an error
// to the caller.
func (eng *Engine) ModerateText(ctx context.Context, text string) Verdict {
	text = strings.TrimSpace(text)
	if text == "" {
		return trivialVerdict()
	}
	if runes := []rune(text); len(runes) > maxTextChars {
		text = string(runes[:maxTextChars])
	}

	if v, ok := eng.cacheGet(ctx, "text", text); ok {
		return v
	}

	set, outcome := eng.cascadeText(ctx, text)
	cascadeOutcomes.WithLabelValues("text", string(outcome)).Inc()
	if outcome == CascadeUnavailable {
		eng.Logger.Warn("no text moderation available, allowing content")
		return unavailableVerdict()
	}

	verdict := FuseText(set, eng.Config.NSFWThreshold, eng.Config.OffensiveThreshold)
	eng.cacheSet(ctx, "text", text, verdict)
	return verdict
}

// ModerateImage produces a safety verdict for a base64-encoded image. An
// undecodable payload is the one case biased toward blocking: content that
// cannot be read cannot be vouched safe.
func (eng *Engine) ModerateImage(ctx context.Context, imageB64 string) Verdict {
	if imageB64 == "" {
		return trivialVerdict()
	}

	if v, ok := eng.cacheGet(ctx, "image", imageB64); ok {
		return v
	}

	results, outcome := eng.cascadeImage(ctx, imageB64)
	cascadeOutcomes.WithLabelValues("image", string(outcome)).Inc()
	switch outcome {
	case CascadeUnavailable:
		eng.Logger.Warn("no image moderation available, allowing content")
		return unavailableVerdict()
	case CascadeLocal, CascadeRemote:
		if results == nil {
			// local path could not decode the payload
			return Verdict{
				IsSafe:     false,
				Confidence: 0.0,
				Category:   CategoryInvalid,
				Reason:     "Failed to process image",
				Details:    map[string]any{},
			}
		}
	}

	verdict := FuseImage(results, eng.Config.NSFWThreshold)
	eng.cacheSet(ctx, "image", imageB64, verdict)
	return verdict
}

// cascadeText attempts the remote path for both signal kinds, falling through
// entirely to local when either remote call fails. There is no partial
// remote/local mixing for text.
func (eng *Engine) cascadeText(ctx context.Context, text string) (SignalSet, CascadeOutcome) {
	if eng.Remote != nil {
		var nsfwResults, offensiveResults []Signal

		// the two calls have no ordering dependency on each other
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			nsfwResults, err = eng.Remote.ClassifyText(gctx, eng.Config.TextNSFWModel, text)
			if err != nil {
				eng.Logger.Warn("remote nsfw classification unavailable", "model", eng.Config.TextNSFWModel, "err", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			offensiveResults, err = eng.Remote.ClassifyText(gctx, eng.Config.TextOffensiveModel, text)
			if err != nil {
				eng.Logger.Warn("remote offensive classification unavailable", "model", eng.Config.TextOffensiveModel, "err", err)
			}
			return nil
		})
		_ = g.Wait()

		if len(nsfwResults) > 0 && len(offensiveResults) > 0 {
			set := NewSignalSet()
			set[KindNSFW] = nsfwResults[0]
			set[KindOffensive] = offensiveResults[0]
			return set, CascadeRemote
		}
	}

	if eng.Local != nil {
		eng.Logger.Info("using local models for text moderation")
		return eng.Local.TextSignals(ctx, text), CascadeLocal
	}

	return nil, CascadeUnavailable
}

// cascadeImage attempts the single remote call, then the local model. A nil
// result list with a non-unavailable outcome means the payload itself was
// unprocessable.
func (eng *Engine) cascadeImage(ctx context.Context, imageB64 string) ([]Signal, CascadeOutcome) {
	if eng.Remote != nil {
		if raw, err := base64.StdEncoding.DecodeString(imageB64); err == nil {
			results, err := eng.Remote.ClassifyImage(ctx, eng.Config.ImageNSFWModel, raw)
			if err != nil {
				eng.Logger.Warn("remote image classification unavailable", "model", eng.Config.ImageNSFWModel, "err", err)
			} else if len(results) > 0 {
				return results, CascadeRemote
			}
		} else {
			eng.Logger.Warn("image payload is not valid base64", "err", err)
		}
	}

	if eng.Local != nil {
		eng.Logger.Info("using local model for image moderation")
		img, err := decodeImagePayload(imageB64)
		if err != nil {
			eng.Logger.Warn("failed to preprocess image", "err", err)
			return nil, CascadeLocal
		}
		return []Signal{eng.Local.ImageSignal(ctx, img)}, CascadeLocal
	}

	return nil, CascadeUnavailable
}

func trivialVerdict() Verdict {
	return Verdict{IsSafe: true, Confidence: 1.0, Details: map[string]any{}}
}

func unavailableVerdict() Verdict {
	return Verdict{
		IsSafe:     true,
		Confidence: 0.5,
		Reason:     "Moderation unavailable",
		Details:    map[string]any{},
	}
}

func (eng *Engine) cacheGet(ctx context.Context, name, content string) (Verdict, bool) {
	if eng.Cache == nil {
		return Verdict{}, false
	}
	val, ok, err := eng.Cache.Get(ctx, name, contentKey(content))
	if err != nil {
		eng.Logger.Warn("verdict cache read failed", "err", err)
		return Verdict{}, false
	}
	if !ok {
		return Verdict{}, false
	}
	var v Verdict
	if err := json.Unmarshal([]byte(val), &v); err != nil {
		return Verdict{}, false
	}
	verdictCacheHits.WithLabelValues(name).Inc()
	return v, true
}

func (eng *Engine) cacheSet(ctx context.Context, name, content string, v Verdict) {
	if eng.Cache == nil {
		return
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := eng.Cache.Set(ctx, name, contentKey(content), string(blob)); err != nil {
		eng.Logger.Warn("verdict cache write failed", "err", err)
	}
}

func contentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
