package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "builder",
			Name:      "builds_total",
			Help:      "Total number of transaction builds",
		},
		[]string{"chain", "type", "status"}, // success, error
	)

	signaturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "builder",
			Name:      "signatures_total",
			Help:      "Total number of signatures attached",
		},
		[]string{"chain", "signer"}, // user, backup
	)

	recoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "engine",
			Name:      "recoveries_total",
			Help:      "Total number of recovery runs",
		},
		[]string{"chain", "outcome"}, // signed, offline, error
	)

	recoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recovery",
			Subsystem: "engine",
			Name:      "duration_seconds",
			Help:      "Time taken by one recovery run, pacing included",
			Buckets:   prometheus.DefBuckets,
		},
	)

	explorerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recovery",
			Subsystem: "explorer",
			Name:      "requests_total",
			Help:      "Total number of explorer queries",
		},
		[]string{"action", "status"}, // ok, rate_limited, error
	)

	explorerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recovery",
			Subsystem: "explorer",
			Name:      "request_duration_seconds",
			Help:      "Explorer query latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)

// Outcome and status labels
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusOK          = "ok"
	StatusRateLimited = "rate_limited"

	OutcomeSigned  = "signed"
	OutcomeOffline = "offline"
)

// RecoveryMetrics provides methods to update recovery-related metrics
type RecoveryMetrics struct{}

func NewRecoveryMetrics() *RecoveryMetrics {
	return &RecoveryMetrics{}
}

func (m *RecoveryMetrics) RecordBuild(chain, txType string, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusError
	}
	buildsTotal.WithLabelValues(chain, txType, status).Inc()
}

func (m *RecoveryMetrics) RecordSignature(chain, signer string) {
	signaturesTotal.WithLabelValues(chain, signer).Inc()
}

// RecordRecovery records a finished run; outcome is OutcomeSigned,
// OutcomeOffline or StatusError.
func (m *RecoveryMetrics) RecordRecovery(chain, outcome string, duration time.Duration) {
	recoveriesTotal.WithLabelValues(chain, outcome).Inc()
	recoveryDuration.Observe(duration.Seconds())
}

func (m *RecoveryMetrics) RecordExplorerRequest(action, status string, duration time.Duration) {
	explorerRequestsTotal.WithLabelValues(action, status).Inc()
	explorerRequestDuration.WithLabelValues(action).Observe(duration.Seconds())
}
