package hfapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var inferenceAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "sentinel_inference_api_duration_sec",
	Help: "Duration of hosted inference API calls",
})

var inferenceAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sentinel_inference_api_count",
	Help: "Number of hosted inference API calls, by model and HTTP status code",
}, []string{"model", "status"})
