package analytics

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDensifyFillsMissingHours(t *testing.T) {
	assert := assert.New(t)

	buckets := densify([]hourCount{
		{Hour: 5, Count: 136},
		{Hour: 18, Count: 20},
	})

	require.Len(t, buckets, 24)
	for i, b := range buckets {
		assert.Equal(i, b.Hour)
	}
	assert.Equal(136, buckets[5].Count)
	assert.Equal(20, buckets[18].Count)
	assert.Equal(0, buckets[0].Count)
	assert.Equal(0, buckets[23].Count)

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(156, total)
}

func TestDensifyEmpty(t *testing.T) {
	assert := assert.New(t)

	buckets := densify(nil)
	require.Len(t, buckets, 24)
	for i, b := range buckets {
		assert.Equal(i, b.Hour)
		assert.Equal(0, b.Count)
	}
}

func TestHourlyRequiresDatabase(t *testing.T) {
	assert := assert.New(t)

	a := &Aggregator{
		WindowDays: 30,
		Timezone:   "UTC",
		Logger:     slog.Default(),
	}
	_, err := a.Hourly(context.Background())
	assert.ErrorIs(err, ErrNotConfigured)
}
