// Package metrics exposes Prometheus instruments for the monitor.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"followwatch/pkg/logger"
)

var (
	BatchRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "followwatch_batch_runs_total",
		Help: "Total batch runs",
	})
	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "followwatch_batch_duration_seconds",
		Help:    "Batch run duration seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	TaskOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "followwatch_task_outcomes_total",
		Help: "Target checks by outcome status and error kind",
	}, []string{"status", "kind"})
	ScrapeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "followwatch_scrape_duration_seconds",
		Help:    "Scraper fetch duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})
	ScrapeRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "followwatch_scrape_retries_total",
		Help: "Total scrape retry attempts",
	}, []string{"platform", "reason"})
	AccountsInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "followwatch_accounts_in_use",
		Help: "Scraper accounts currently leased",
	})
	NotifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "followwatch_notify_failures_total",
		Help: "Total failed report deliveries",
	})
)

func init() {
	prometheus.MustRegister(BatchRuns, BatchDuration, TaskOutcomes, ScrapeDuration,
		ScrapeRetries, AccountsInUse, NotifyFailures)
}

// ObserveBatch records one finished batch run
func ObserveBatch(start time.Time) {
	BatchRuns.Inc()
	BatchDuration.Observe(time.Since(start).Seconds())
}

// IncOutcome counts one task outcome. kind is empty for non-failures.
func IncOutcome(status, kind string) { TaskOutcomes.WithLabelValues(status, kind).Inc() }

// ObserveScrape records a fetch duration for platform
func ObserveScrape(platform string, d time.Duration) {
	ScrapeDuration.WithLabelValues(platform).Observe(d.Seconds())
}

// IncScrapeRetry increments the retry counter
func IncScrapeRetry(platform, reason string) { ScrapeRetries.WithLabelValues(platform, reason).Inc() }

// SetAccountsInUse sets the leased accounts gauge
func SetAccountsInUse(n int) { AccountsInUse.Set(float64(n)) }

// IncNotifyFailure counts one failed delivery
func IncNotifyFailure() { NotifyFailures.Inc() }

// Handler serves /metrics and /health
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// Server is a running metrics listener
type Server struct {
	srv *http.Server
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090"). An empty
// addr returns a nil server.
func StartServer(addr string, log logger.Logger) *Server {
	if addr == "" {
		return nil
	}
	if log == nil {
		log = logger.GetLogger()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).ErrorWithFields("metrics server stopped", map[string]interface{}{"addr": addr})
		}
	}()
	log.InfoWithFields("metrics server listening", map[string]interface{}{"addr": addr})
	return &Server{srv: srv}
}

// Shutdown stops the listener. It is safe on a nil server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
