// Package metrics provides Prometheus metrics for the recovery binaries.
//
// This package includes:
// - build, signature, recovery and explorer call metrics
// - HTTP request metrics for the metrics server itself
// - Metrics HTTP server on configurable port
//
// Usage:
//
//	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceRecovery}, logger)
//	defer metricsServer.Stop(context.Background())
package metrics

// Service names accepted by RegisterMetrics.
const (
	ServiceHTTP     = "http"
	ServiceRecovery = "recovery"
)
