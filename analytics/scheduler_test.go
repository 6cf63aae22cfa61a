package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSource) Hourly(ctx context.Context) ([]HourlyBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return densify(nil), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu       sync.Mutex
	payloads []ExportPayload
	errs     []error
}

func (f *fakeSink) Send(ctx context.Context, payload ExportPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeSink) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestExporter(source BucketSource, sink Sink, interval time.Duration) *Exporter {
	return &Exporter{
		Source:     source,
		Sink:       sink,
		Interval:   interval,
		WindowDays: 30,
		Timezone:   "UTC",
		Logger:     slog.Default(),
	}
}

func TestExporterNoSinkIsInert(t *testing.T) {
	assert := assert.New(t)

	source := &fakeSource{}
	e := newTestExporter(source, nil, time.Millisecond)
	e.Start()
	e.Shutdown()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(0, source.callCount())
}

func TestExporterShipsPayload(t *testing.T) {
	assert := assert.New(t)

	source := &fakeSource{}
	sink := &fakeSink{}
	e := newTestExporter(source, sink, time.Hour)
	e.Start()
	defer e.Shutdown()

	waitFor(t, func() bool { return sink.sendCount() >= 1 })

	sink.mu.Lock()
	payload := sink.payloads[0]
	sink.mu.Unlock()
	assert.Equal(30, payload.WindowDays)
	assert.Equal("UTC", payload.Timezone)
	require.Len(t, payload.Buckets, 24)
	assert.False(payload.GeneratedAt.IsZero())
}

// A sink failure on cycle N must not prevent cycle N+1.
func TestExporterSurvivesSinkFailure(t *testing.T) {
	assert := assert.New(t)

	source := &fakeSource{}
	sink := &fakeSink{errs: []error{errors.New("ingest down")}}
	e := newTestExporter(source, sink, 10*time.Millisecond)
	e.Start()
	defer e.Shutdown()

	waitFor(t, func() bool { return sink.sendCount() >= 3 })
	assert.GreaterOrEqual(source.callCount(), 3)
}

// An aggregation failure is likewise contained per cycle.
func TestExporterSurvivesAggregateFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("db gone")}
	sink := &fakeSink{}
	e := newTestExporter(source, sink, 10*time.Millisecond)
	e.Start()
	defer e.Shutdown()

	waitFor(t, func() bool { return source.callCount() >= 3 })
	assert.Equal(t, 0, sink.sendCount())
}

// Shutdown during the inter-cycle sleep terminates promptly rather than
// waiting out the full interval.
func TestExporterShutdownDuringSleep(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	e := newTestExporter(source, sink, time.Hour)
	e.Start()

	waitFor(t, func() bool { return sink.sendCount() >= 1 })

	done := make(chan struct{})
	go func() {
		e.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete while scheduler was sleeping")
	}
}

func TestExporterStartIdempotent(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	e := newTestExporter(source, sink, time.Hour)
	e.Start()
	e.Start()
	e.Start()
	defer e.Shutdown()

	waitFor(t, func() bool { return sink.sendCount() >= 1 })
	// a second Start must not have spawned a second loop
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sink.sendCount())
}
