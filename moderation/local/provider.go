// Package local runs moderation models in-process via ONNX Runtime. Model
// handles are loaded lazily on first use and cached for the life of the
// process; load failures degrade to safe-default signals instead of erroring
// out of the classifier port.
package local

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/odan-platform/sentinel/moderation"
)

// Text fed to local classification is capped at this many characters. This
// is tighter than the engine's outer 2000-char bound.
const maxLocalTextChars = 512

// Local image labels treated as NSFW hits when scanning model output.
var localImageNSFWLabels = map[string]bool{
	"nsfw": true, "porn": true, "sexy": true, "hentai": true, "unsafe": true,
}

type Config struct {
	ModelsDir          string
	TextNSFWModel      string
	// Loaded instead when the primary text-NSFW model fails to load. This
	// one-time degrade applies only to the text-NSFW task.
	TextNSFWFallbackModel string
	TextOffensiveModel    string
	ImageNSFWModel        string
}

// Provider is the in-process classifier. Safe for concurrent use; a race on
// first use is resolved by the per-task load guards.
type Provider struct {
	Logger *slog.Logger
	cfg    Config

	textNSFWOnce sync.Once
	textNSFW     *textModel

	textOffensiveOnce sync.Once
	textOffensive     *textModel

	imageNSFWOnce sync.Once
	imageNSFW     *imageModel
}

func NewProvider(logger *slog.Logger, cfg Config) *Provider {
	return &Provider{
		Logger: logger,
		cfg:    cfg,
	}
}

var _ moderation.LocalClassifier = (*Provider)(nil)

// TextSignals classifies text for every recognized signal kind, returning
// safe defaults for any kind whose model is unavailable or fails.
func (p *Provider) TextSignals(ctx context.Context, text string) moderation.SignalSet {
	if runes := []rune(text); len(runes) > maxLocalTextChars {
		text = string(runes[:maxLocalTextChars])
	}

	set := moderation.NewSignalSet()

	if m := p.nsfwModel(); m != nil {
		if ranked, err := m.classify(text); err != nil {
			p.Logger.Error("local nsfw classification failed", "err", err)
		} else if len(ranked) > 0 {
			set[moderation.KindNSFW] = moderation.Signal{Label: ranked[0].label, Score: ranked[0].score}
		}
	}

	if m := p.offensiveModel(); m != nil {
		if ranked, err := m.classify(text); err != nil {
			p.Logger.Error("local offensive classification failed", "err", err)
		} else if len(ranked) > 0 {
			set[moderation.KindOffensive] = moderation.Signal{Label: ranked[0].label, Score: ranked[0].score}
		}
	}

	return set
}

// ImageSignal classifies one preprocessed image. A missing model yields
// {UNKNOWN, 0.0} and an inference failure {ERROR, 0.0}; neither raises.
func (p *Provider) ImageSignal(ctx context.Context, img image.Image) moderation.Signal {
	m := p.imageModel()
	if m == nil {
		p.Logger.Warn("image moderation model not available")
		return moderation.Signal{Label: "UNKNOWN", Score: 0.0}
	}

	ranked, err := m.classify(img)
	if err != nil {
		p.Logger.Error("image classification failed", "err", err)
		return moderation.Signal{Label: "ERROR", Score: 0.0}
	}
	if len(ranked) == 0 {
		return moderation.Signal{Label: "SAFE", Score: 1.0}
	}

	for _, r := range ranked {
		if localImageNSFWLabels[strings.ToLower(r.label)] {
			return moderation.Signal{Label: "NSFW", Score: r.score}
		}
	}

	// no NSFW hit: surface the top prediction
	return moderation.Signal{Label: strings.ToUpper(ranked[0].label), Score: ranked[0].score}
}

func (p *Provider) nsfwModel() *textModel {
	p.textNSFWOnce.Do(func() {
		m, err := loadTextModel(p.cfg.ModelsDir, p.cfg.TextNSFWModel)
		if err == nil {
			p.textNSFW = m
			return
		}
		p.Logger.Error("failed to load text NSFW model", "model", p.cfg.TextNSFWModel, "err", err)
		if p.cfg.TextNSFWFallbackModel == "" {
			return
		}
		m, err = loadTextModel(p.cfg.ModelsDir, p.cfg.TextNSFWFallbackModel)
		if err != nil {
			p.Logger.Error("failed to load fallback text NSFW model", "model", p.cfg.TextNSFWFallbackModel, "err", err)
			return
		}
		p.Logger.Info("loaded fallback text NSFW model", "model", p.cfg.TextNSFWFallbackModel)
		p.textNSFW = m
	})
	return p.textNSFW
}

func (p *Provider) offensiveModel() *textModel {
	p.textOffensiveOnce.Do(func() {
		m, err := loadTextModel(p.cfg.ModelsDir, p.cfg.TextOffensiveModel)
		if err != nil {
			p.Logger.Error("failed to load text offensive model", "model", p.cfg.TextOffensiveModel, "err", err)
			return
		}
		p.textOffensive = m
	})
	return p.textOffensive
}

func (p *Provider) imageModel() *imageModel {
	p.imageNSFWOnce.Do(func() {
		m, err := loadImageModel(p.cfg.ModelsDir, p.cfg.ImageNSFWModel)
		if err != nil {
			p.Logger.Error("failed to load image NSFW model", "model", p.cfg.ImageNSFWModel, "err", err)
			return
		}
		p.imageNSFW = m
	})
	return p.imageNSFW
}

// Close releases any loaded model sessions.
func (p *Provider) Close() {
	if p.textNSFW != nil {
		p.textNSFW.close()
	}
	if p.textOffensive != nil {
		p.textOffensive.close()
	}
	if p.imageNSFW != nil {
		p.imageNSFW.close()
	}
}
