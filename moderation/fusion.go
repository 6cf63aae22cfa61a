package moderation

import (
	"fmt"
	"math"
	"strings"
)

// Positive label sets per signal kind. Matching is case-insensitive; text
// labels are compared upper-cased, image labels lower-cased.
var (
	textNSFWLabels = map[string]bool{
		"NSFW": true, "UNSAFE": true, "1": true, "LABEL_1": true,
	}
	textOffensiveLabels = map[string]bool{
		"OFFENSIVE": true, "HATE": true, "TOXIC": true, "1": true, "LABEL_1": true,
	}
	imageNSFWLabels = map[string]bool{
		"nsfw": true, "porn": true, "sexy": true, "hentai": true, "unsafe": true, "explicit": true,
	}
)

const (
	reasonTextNSFW      = "Content flagged as NSFW/inappropriate"
	reasonTextOffensive = "Content flagged as offensive/hateful"
)

// FuseText combines a text SignalSet into a single verdict. NSFW is evaluated
// first; offensive second. When only the offensive signal flips the verdict,
// confidence is the offensive score itself, not a max against the initial
// 1.0 — the max rule applies only once NSFW has already flipped it. Callers
// depend on this asymmetry deciding which content gets blocked.
func FuseText(set SignalSet, nsfwThreshold, offensiveThreshold float64) Verdict {
	verdict := Verdict{
		IsSafe:     true,
		Confidence: 1.0,
		Details:    set,
	}

	nsfw := set[KindNSFW]
	nsfwFlagged := false
	if textNSFWLabels[strings.ToUpper(nsfw.Label)] && nsfw.Score >= nsfwThreshold {
		nsfwFlagged = true
		verdict.IsSafe = false
		verdict.Confidence = nsfw.Score
		verdict.Category = CategoryNSFW
		verdict.Reason = reasonTextNSFW
	}

	offensive := set[KindOffensive]
	if textOffensiveLabels[strings.ToUpper(offensive.Label)] && offensive.Score >= offensiveThreshold {
		verdict.IsSafe = false
		if nsfwFlagged {
			verdict.Confidence = math.Max(verdict.Confidence, offensive.Score)
		} else {
			verdict.Confidence = offensive.Score
		}
		if verdict.Category == "" {
			verdict.Category = CategoryOffensive
		}
		if verdict.Reason == "" {
			verdict.Reason = reasonTextOffensive
		}
	}

	return verdict
}

// FuseImage scans classifier results in order; the first entry whose label is
// in the NSFW set and whose score clears the threshold decides the verdict
// and stops the scan. First qualifying match wins, not highest score.
func FuseImage(results []Signal, nsfwThreshold float64) Verdict {
	verdict := Verdict{
		IsSafe:     true,
		Confidence: 1.0,
		Details:    map[string]any{"results": results},
	}

	for _, result := range results {
		label := strings.ToLower(result.Label)
		if imageNSFWLabels[label] && result.Score >= nsfwThreshold {
			verdict.IsSafe = false
			verdict.Confidence = result.Score
			verdict.Category = CategoryNSFW
			verdict.Reason = fmt.Sprintf("Image flagged as %s", label)
			break
		}
	}

	return verdict
}
