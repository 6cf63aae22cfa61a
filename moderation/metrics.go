package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cascadeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_cascade_outcome_count",
	Help: "Number of moderation cascade runs, by task and terminal outcome",
}, []string{"task", "outcome"})

var verdictCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_verdict_cache_hit_count",
	Help: "Number of verdicts served from the content-hash cache, by task",
}, []string{"task"})
