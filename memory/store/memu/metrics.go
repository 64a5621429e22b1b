package memu

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/becomeliminal/nim-recall/memory"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nim_recall",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Calls to the memory service by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nim_recall",
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the memory service.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

// observe is a no-op on a nil receiver so the client can skip metrics.
func (m *metrics) observe(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	m.requests.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var remote *memory.RemoteServiceError
	if errors.As(err, &remote) {
		return string(remote.Kind)
	}
	return "error"
}
