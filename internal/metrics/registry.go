package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// RegisterMetrics registers the collectors of services with the default
// registry. Go and process collectors are always registered.
func RegisterMetrics(services []string, logger logrus.FieldLogger) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	for _, service := range services {
		switch service {
		case ServiceHTTP:
			registerHTTPMetrics(logger)
		case ServiceRecovery:
			registerRecoveryMetrics(logger)
		default:
			logger.Warnf("unknown metrics service: %s", service)
		}
	}
}

func registerIfNotExists(collector prometheus.Collector, name string, logger logrus.FieldLogger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("failed to register %s: %v", name, err)
		}
	}
}

func registerHTTPMetrics(logger logrus.FieldLogger) {
	for _, c := range httpCollectors() {
		registerIfNotExists(c, "metrics_server", logger)
	}
}

func registerRecoveryMetrics(logger logrus.FieldLogger) {
	registerIfNotExists(buildsTotal, "builds_total", logger)
	registerIfNotExists(signaturesTotal, "signatures_total", logger)
	registerIfNotExists(recoveriesTotal, "recoveries_total", logger)
	registerIfNotExists(recoveryDuration, "recovery_duration", logger)
	registerIfNotExists(explorerRequestsTotal, "explorer_requests_total", logger)
	registerIfNotExists(explorerRequestDuration, "explorer_request_duration", logger)
}
