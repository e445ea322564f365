package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestRecoveryMetrics(t *testing.T) {
	m := NewRecoveryMetrics()

	before := testutil.ToFloat64(recoveriesTotal.WithLabelValues("Ethereum", OutcomeSigned))
	m.RecordRecovery("Ethereum", OutcomeSigned, time.Second)
	require.Equal(t, before+1, testutil.ToFloat64(recoveriesTotal.WithLabelValues("Ethereum", OutcomeSigned)))

	before = testutil.ToFloat64(buildsTotal.WithLabelValues("Ethereum", "Send", StatusError))
	m.RecordBuild("Ethereum", "Send", false)
	require.Equal(t, before+1, testutil.ToFloat64(buildsTotal.WithLabelValues("Ethereum", "Send", StatusError)))

	m.RecordExplorerRequest("balance", StatusRateLimited, time.Millisecond)
	require.GreaterOrEqual(t, testutil.ToFloat64(explorerRequestsTotal.WithLabelValues("balance", StatusRateLimited)), 1.0)
}

func TestServerExposesMetrics(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	RegisterMetrics([]string{ServiceHTTP, ServiceRecovery, "unknown"}, logger)
	// registering twice is tolerated
	RegisterMetrics([]string{ServiceRecovery}, logger)

	NewRecoveryMetrics().RecordSignature("Ethereum", "backup")

	srv := httptest.NewServer(NewServer(logger).Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "recovery_builder_signatures_total"))
}

func TestHTTPMiddleware(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	srv := httptest.NewServer(NewServer(logger).Handler())
	defer srv.Close()

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before := testutil.ToFloat64(counter)
	for i := 0; i < 2; i++ {
		res, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		_ = res.Body.Close()
	}
	require.Equal(t, before+2, testutil.ToFloat64(counter))
}
