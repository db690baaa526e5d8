package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposure(t *testing.T) {
	ObserveBatch(time.Now().Add(-1500 * time.Millisecond))
	IncOutcome("failure", "scrape_failed")
	ObserveScrape("instagram", 300*time.Millisecond)
	IncScrapeRetry("tiktok", "rate_limited")
	SetAccountsInUse(2)
	IncNotifyFailure()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, m := range []string{
		"followwatch_batch_runs_total",
		"followwatch_batch_duration_seconds",
		"followwatch_task_outcomes_total",
		"followwatch_scrape_duration_seconds",
		"followwatch_scrape_retries_total",
		"followwatch_accounts_in_use 2",
		"followwatch_notify_failures_total",
	} {
		assert.Contains(t, body, m)
	}
}

func counterValue(t *testing.T, status, kind string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, TaskOutcomes.WithLabelValues(status, kind).Write(&m))
	return m.GetCounter().GetValue()
}

func TestOutcomeCounterLabels(t *testing.T) {
	before := counterValue(t, "skipped", "")
	IncOutcome("skipped", "")
	assert.Equal(t, before+1, counterValue(t, "skipped", ""))
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartServerDisabled(t *testing.T) {
	s := StartServer("", nil)
	assert.Nil(t, s)
	assert.NoError(t, s.Shutdown(context.Background()))
}
