package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Exporter is the background loop that aggregates and ships the hourly
// histogram at a fixed interval. A failed cycle is logged and the next cycle
// proceeds unaffected; the only exit path is Shutdown.
type Exporter struct {
	Source     BucketSource
	Sink       Sink
	Interval   time.Duration
	WindowDays int
	Timezone   string
	Logger     *slog.Logger

	startOnce sync.Once
	started   bool
	exit      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Start launches the export loop. Idempotent; a no-op when no sink is
// configured, leaving the subsystem entirely inert.
func (e *Exporter) Start() {
	e.startOnce.Do(func() {
		if e.Sink == nil {
			e.Logger.Info("analytics sink not configured, export scheduler disabled")
			return
		}
		e.started = true
		e.exit = make(chan struct{})

		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel

		e.Logger.Info("starting analytics export scheduler", "interval", e.Interval)
		e.wg.Add(1)
		go e.run(ctx)
	})
}

// Shutdown cancels the loop, interrupting any in-flight sleep or I/O, and
// waits for it to unwind before returning.
func (e *Exporter) Shutdown() {
	if !e.started {
		return
	}
	e.Logger.Info("stopping analytics export scheduler")
	e.cancel()
	close(e.exit)
	e.wg.Wait()
	e.Logger.Info("analytics export scheduler stopped")
}

func (e *Exporter) run(ctx context.Context) {
	defer e.wg.Done()

	t := time.NewTicker(e.Interval)
	defer t.Stop()

	for {
		e.exportOnce(ctx)
		select {
		case <-e.exit:
			return
		case <-t.C:
		}
	}
}

// exportOnce runs one aggregate-and-push cycle. Failures are logged and
// contained; a single failed export must never kill the scheduler. A cycle
// interrupted by shutdown is not an error worth logging.
func (e *Exporter) exportOnce(ctx context.Context) {
	buckets, err := e.Source.Hourly(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.Logger.Error("failed to aggregate hourly ticket stats", "err", err)
			exportCycles.WithLabelValues("aggregate_error").Inc()
		}
		return
	}

	payload := ExportPayload{
		GeneratedAt: time.Now().UTC(),
		WindowDays:  e.WindowDays,
		Timezone:    e.Timezone,
		Buckets:     buckets,
	}
	if err := e.Sink.Send(ctx, payload); err != nil {
		if ctx.Err() == nil {
			e.Logger.Error("failed to export hourly ticket stats", "err", err)
			exportCycles.WithLabelValues("send_error").Inc()
		}
		return
	}

	e.Logger.Info("sent hourly ticket stats to sink", "windowDays", e.WindowDays, "timezone", e.Timezone)
	exportCycles.WithLabelValues("ok").Inc()
}
