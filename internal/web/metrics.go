package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var histogramResponseTime = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "billed",
		Subsystem: "http",
		Name:      "histogram_response_time_seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	},
	[]string{"route", "code"},
)

var counterEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "billed",
		Subsystem: "app",
		Name:      "events_total",
	},
	[]string{"event", "result"},
)

func countEvent(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	counterEvents.WithLabelValues(event, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument observes how long a route takes to answer
func instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		histogramResponseTime.
			WithLabelValues(name, strconv.Itoa(rec.code)).
			Observe(time.Since(start).Seconds())
	}
}
