// Package analytics aggregates stored ticket events into a fixed 24-slot
// hourly histogram and ships it to an external analytics sink on a timer,
// independent of moderation request traffic.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// ErrNotConfigured indicates aggregation was requested with no event-store
// connection configured. This is a precondition failure, not retried.
var ErrNotConfigured = errors.New("analytics database not configured")

// HourlyBucket is the event count for one hour-of-day. Aggregation always
// produces exactly 24 of these, ascending, gaps zero-filled.
type HourlyBucket struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// BucketSource produces the dense hourly histogram. Implemented by
// Aggregator; the scheduler and the HTTP layer consume it through this
// interface.
type BucketSource interface {
	Hourly(ctx context.Context) ([]HourlyBucket, error)
}

// Aggregator reads timestamped ticket rows from the event store and groups
// them by hour-of-day in the configured timezone over a trailing window.
type Aggregator struct {
	DB         *gorm.DB
	WindowDays int
	Timezone   string
	Logger     *slog.Logger
}

var _ BucketSource = (*Aggregator)(nil)

const hourlyCountsSQL = `
	SELECT EXTRACT(HOUR FROM ("createdAt" AT TIME ZONE ?))::int AS hour,
	       COUNT(*)::int AS count
	FROM "Ticket"
	WHERE "createdAt" >= NOW() - (? || ' days')::interval
	GROUP BY hour
	ORDER BY hour
`

type hourCount struct {
	Hour  int
	Count int
}

// Hourly runs the grouped query and densifies the sparse result into exactly
// 24 buckets with index i holding hour i.
func (a *Aggregator) Hourly(ctx context.Context) ([]HourlyBucket, error) {
	if a.DB == nil {
		return nil, ErrNotConfigured
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return nil, fmt.Errorf("invalid analytics timezone %q: %w", a.Timezone, err)
	}

	var rows []hourCount
	if err := a.DB.WithContext(ctx).Raw(hourlyCountsSQL, a.Timezone, a.WindowDays).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying hourly ticket counts: %w", err)
	}

	return densify(rows), nil
}

// densify expands a sparse hour→count mapping into 24 ascending buckets,
// defaulting absent hours to zero.
func densify(rows []hourCount) []HourlyBucket {
	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.Hour] = row.Count
	}
	buckets := make([]HourlyBucket, 24)
	for hour := 0; hour < 24; hour++ {
		buckets[hour] = HourlyBucket{Hour: hour, Count: counts[hour]}
	}
	return buckets
}
