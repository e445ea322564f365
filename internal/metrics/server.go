package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Host    string `envconfig:"METRICS_HOST" default:"0.0.0.0"`
	Port    int    `envconfig:"METRICS_PORT" default:"88"`
}

// Server serves /metrics on its own port.
type Server struct {
	echo   *echo.Echo
	logger logrus.FieldLogger
}

func NewServer(logger logrus.FieldLogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(HTTPMiddleware())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return &Server{echo: e, logger: logger}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// StartMetricsServer registers the metrics of services and serves them in the
// background. It returns nil when metrics are disabled.
func StartMetricsServer(cfg Config, services []string, logger logrus.FieldLogger) *Server {
	if !cfg.Enabled {
		logger.Info("metrics server disabled")
		return nil
	}
	RegisterMetrics(append([]string{ServiceHTTP}, services...), logger)

	s := NewServer(logger)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	go func() {
		logger.Infof("starting metrics server on %s", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server failed: %v", err)
		}
	}()
	return s
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
