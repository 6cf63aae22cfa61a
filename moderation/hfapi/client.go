// HTTP client for the hosted inference API (HuggingFace-style model
// endpoints). All failure states collapse to an error return; the cascade
// treats any error as "this provider is unavailable for this call" and falls
// through. There is deliberately no retry here: every failure is a one-shot
// fallback decision.
package hfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/odan-platform/sentinel/moderation"

	"github.com/carlmjohnson/versioninfo"
)

// ErrWarmingUp marks the transient "model is loading" response (HTTP 503).
// It is a fallback signal, not a fatal failure.
var ErrWarmingUp = errors.New("remote model is warming up")

const (
	defaultTextTimeout  = 30 * time.Second
	defaultImageTimeout = 60 * time.Second
)

type Client struct {
	Client  http.Client
	BaseURL string
	Token   string

	// Per-call deadlines; zero values fall back to the defaults above.
	TextTimeout  time.Duration
	ImageTimeout time.Duration
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
	}
}

var _ moderation.RemoteClassifier = (*Client)(nil)

// ClassifyText posts text to the named model endpoint and returns its
// label/score predictions.
func (c *Client) ClassifyText(ctx context.Context, model, text string) ([]moderation.Signal, error) {
	timeout := c.TextTimeout
	if timeout == 0 {
		timeout = defaultTextTimeout
	}

	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, err
	}
	return c.classify(ctx, model, "application/json", body, timeout)
}

// ClassifyImage posts raw image bytes to the named model endpoint.
func (c *Client) ClassifyImage(ctx context.Context, model string, data []byte) ([]moderation.Signal, error) {
	timeout := c.ImageTimeout
	if timeout == 0 {
		timeout = defaultImageTimeout
	}
	return c.classify(ctx, model, "application/octet-stream", data, timeout)
}

func (c *Client) classify(ctx context.Context, model, contentType string, body []byte, timeout time.Duration) ([]moderation.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/"+model, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sentinel/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		inferenceAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		inferenceAPICount.WithLabelValues(model, "error").Inc()
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer res.Body.Close()

	inferenceAPICount.WithLabelValues(model, fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode == http.StatusServiceUnavailable {
		return nil, ErrWarmingUp
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference resp body: %w", err)
	}

	signals, err := parseSignals(respBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inference resp JSON: %w", err)
	}
	return signals, nil
}

// parseSignals accepts the response shapes the inference API is known to
// produce: a list of label/score objects, a nested list (one inner list per
// input), or a bare object.
func parseSignals(raw []byte) ([]moderation.Signal, error) {
	var list []moderation.Signal
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var nested [][]moderation.Signal
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var single moderation.Signal
	if err := json.Unmarshal(raw, &single); err == nil && single.Label != "" {
		return []moderation.Signal{single}, nil
	}

	return nil, fmt.Errorf("unrecognized response shape")
}
