package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuseTextSafeDefaults(t *testing.T) {
	assert := assert.New(t)

	verdict := FuseText(NewSignalSet(), 0.7, 0.6)
	assert.True(verdict.IsSafe)
	assert.Equal(1.0, verdict.Confidence)
	assert.Empty(verdict.Category)
	assert.Empty(verdict.Reason)
	assert.NotNil(verdict.Details)
}

func TestFuseTextNSFWThreshold(t *testing.T) {
	assert := assert.New(t)

	set := NewSignalSet()
	set[KindNSFW] = Signal{Label: "NSFW", Score: 0.85}
	verdict := FuseText(set, 0.7, 0.6)
	assert.False(verdict.IsSafe)
	assert.Equal(0.85, verdict.Confidence)
	assert.Equal(CategoryNSFW, verdict.Category)

	// a matching label below threshold must not flip unsafe
	set[KindNSFW] = Signal{Label: "NSFW", Score: 0.65}
	verdict = FuseText(set, 0.7, 0.6)
	assert.True(verdict.IsSafe)
	assert.Equal(1.0, verdict.Confidence)

	// a non-matching label above threshold must not flip either
	set[KindNSFW] = Signal{Label: "SAFE", Score: 0.99}
	verdict = FuseText(set, 0.7, 0.6)
	assert.True(verdict.IsSafe)
}

func TestFuseTextLabelCaseInsensitive(t *testing.T) {
	assert := assert.New(t)

	set := NewSignalSet()
	set[KindNSFW] = Signal{Label: "nsfw", Score: 0.9}
	assert.False(FuseText(set, 0.7, 0.6).IsSafe)

	set = NewSignalSet()
	set[KindOffensive] = Signal{Label: "toxic", Score: 0.9}
	assert.False(FuseText(set, 0.7, 0.6).IsSafe)

	set = NewSignalSet()
	set[KindNSFW] = Signal{Label: "label_1", Score: 0.9}
	assert.False(FuseText(set, 0.7, 0.6).IsSafe)
}

// When only the offensive signal flips the verdict, confidence must be the
// offensive score itself, not max(1.0, score).
func TestFuseTextOffensiveOnlyConfidence(t *testing.T) {
	assert := assert.New(t)

	set := NewSignalSet()
	set[KindOffensive] = Signal{Label: "OFFENSIVE", Score: 0.72}
	verdict := FuseText(set, 0.7, 0.6)
	assert.False(verdict.IsSafe)
	assert.Equal(0.72, verdict.Confidence)
	assert.Equal(CategoryOffensive, verdict.Category)
	assert.Equal(reasonTextOffensive, verdict.Reason)
}

// When NSFW already flipped the verdict, the offensive score maxes against
// the NSFW confidence, and category/reason keep the NSFW values.
func TestFuseTextBothFlipped(t *testing.T) {
	assert := assert.New(t)

	set := NewSignalSet()
	set[KindNSFW] = Signal{Label: "UNSAFE", Score: 0.75}
	set[KindOffensive] = Signal{Label: "HATE", Score: 0.95}
	verdict := FuseText(set, 0.7, 0.6)
	assert.False(verdict.IsSafe)
	assert.Equal(0.95, verdict.Confidence)
	assert.Equal(CategoryNSFW, verdict.Category)
	assert.Equal(reasonTextNSFW, verdict.Reason)

	// lower offensive score keeps the NSFW confidence
	set[KindOffensive] = Signal{Label: "HATE", Score: 0.65}
	verdict = FuseText(set, 0.7, 0.6)
	assert.Equal(0.75, verdict.Confidence)
	assert.Equal(CategoryNSFW, verdict.Category)
}

func TestFuseImageFirstMatchWins(t *testing.T) {
	assert := assert.New(t)

	// first entry below threshold does not stop the scan; the later
	// qualifying entry decides
	verdict := FuseImage([]Signal{
		{Label: "nsfw", Score: 0.4},
		{Label: "porn", Score: 0.95},
	}, 0.7)
	assert.False(verdict.IsSafe)
	assert.Equal(0.95, verdict.Confidence)
	assert.Equal(CategoryNSFW, verdict.Category)
	assert.Equal("Image flagged as porn", verdict.Reason)

	// first qualifying match wins even when a later score is higher
	verdict = FuseImage([]Signal{
		{Label: "sexy", Score: 0.8},
		{Label: "porn", Score: 0.99},
	}, 0.7)
	assert.False(verdict.IsSafe)
	assert.Equal(0.8, verdict.Confidence)
	assert.Equal("Image flagged as sexy", verdict.Reason)
}

func TestFuseImageSafe(t *testing.T) {
	assert := assert.New(t)

	verdict := FuseImage([]Signal{
		{Label: "normal", Score: 0.98},
		{Label: "nsfw", Score: 0.02},
	}, 0.7)
	assert.True(verdict.IsSafe)
	assert.Equal(1.0, verdict.Confidence)
	assert.Empty(verdict.Category)

	verdict = FuseImage(nil, 0.7)
	assert.True(verdict.IsSafe)
}
