package analytics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartoClientSend(t *testing.T) {
	assert := assert.New(t)

	var gotAuth, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("POST", r.Method)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c := NewCartoClient(srv.URL, "carto-secret")
	payload := ExportPayload{
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		WindowDays:  30,
		Timezone:    "UTC",
		Buckets:     densify([]hourCount{{Hour: 9, Count: 12}}),
	}
	err := c.Send(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal("Bearer carto-secret", gotAuth)
	assert.Equal("application/json", gotContentType)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Contains(decoded, "generatedAt")
	assert.Contains(decoded, "windowDays")
	assert.Contains(decoded, "timezone")
	assert.Contains(decoded, "buckets")

	var buckets []HourlyBucket
	require.NoError(t, json.Unmarshal(decoded["buckets"], &buckets))
	require.Len(t, buckets, 24)
	assert.Equal(12, buckets[9].Count)
}

func TestCartoClientNoKeyOmitsAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(204)
	}))
	defer srv.Close()

	c := NewCartoClient(srv.URL, "")
	err := c.Send(context.Background(), ExportPayload{Buckets: densify(nil)})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestCartoClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	c := NewCartoClient(srv.URL, "k")
	err := c.Send(context.Background(), ExportPayload{Buckets: densify(nil)})
	assert.ErrorContains(t, err, "statusCode=500")
}
