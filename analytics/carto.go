package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

// ExportPayload is the wire record sent to the analytics sink, constructed
// fresh each export cycle.
type ExportPayload struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	WindowDays  int            `json:"windowDays"`
	Timezone    string         `json:"timezone"`
	Buckets     []HourlyBucket `json:"buckets"`
}

// Sink receives exported histograms. Implemented by CartoClient.
type Sink interface {
	Send(ctx context.Context, payload ExportPayload) error
}

// CartoClient pushes export payloads to the CARTO ingest endpoint.
type CartoClient struct {
	Client http.Client
	URL    string
	APIKey string
}

var _ Sink = (*CartoClient)(nil)

func NewCartoClient(url, apiKey string) *CartoClient {
	return &CartoClient{
		Client: http.Client{Timeout: 15 * time.Second},
		URL:    url,
		APIKey: apiKey,
	}
}

// Send posts the payload as JSON. Non-2xx responses are returned as errors;
// the scheduler's per-cycle guard is responsible for containing them.
func (c *CartoClient) Send(ctx context.Context, payload ExportPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "sentinel/"+versioninfo.Short())
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	start := time.Now()
	defer func() {
		sinkAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		sinkAPICount.WithLabelValues("error").Inc()
		return fmt.Errorf("sink request failed: %w", err)
	}
	defer res.Body.Close()

	sinkAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("sink request failed statusCode=%d", res.StatusCode)
	}
	return nil
}
