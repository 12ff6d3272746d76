package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	t.Run("logins are labelled by outcome", func(t *testing.T) {
		c.RecordLogin("success")
		c.RecordLogin("success")
		c.RecordLogin("auth_rejected")

		mf := findMetric(t, reg, "agribid_logins_total")
		assert.Len(t, mf.GetMetric(), 2)
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		assert.Equal(t, float64(3), total)
	})

	t.Run("profile retries increment", func(t *testing.T) {
		c.RecordProfileWriteRetry()
		mf := findMetric(t, reg, "agribid_profile_write_retries_total")
		assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
	})

	t.Run("http requests record count and latency", func(t *testing.T) {
		c.RecordHTTPRequest(http.MethodGet, "/v1/products", 200, 15*time.Millisecond)
		mf := findMetric(t, reg, "agribid_http_requests_total")
		assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		hist := findMetric(t, reg, "agribid_http_request_duration_seconds")
		assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount())
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordListingCreated("A")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Result().Body)
	assert.Contains(t, string(body), `agribid_listings_created_total{grade="A"} 1`)
}
