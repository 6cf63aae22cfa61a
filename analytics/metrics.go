package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var exportCycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_analytics_export_cycle_count",
	Help: "Number of analytics export cycles, by result",
}, []string{"result"})

var sinkAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "sentinel_analytics_sink_duration_sec",
	Help: "Duration of analytics sink push calls",
})

var sinkAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_analytics_sink_count",
	Help: "Number of analytics sink push calls, by HTTP status code",
}, []string{"status"})
