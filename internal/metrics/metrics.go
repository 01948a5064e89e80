package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_platform_requests_total",
			Help: "Total platform API requests executed",
		},
		[]string{"platform", "status"},
	)

	RiskControlHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_risk_control_hits_total",
			Help: "Total responses classified as platform risk control",
		},
		[]string{"platform", "source"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_platform_searches_total",
			Help: "Total per-platform searches by outcome",
		},
		[]string{"platform", "outcome"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "magpie_search_duration_seconds",
			Help:    "Duration of whole-run keyword searches in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	CommentsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_comments_fetched_total",
			Help: "Total comments attached to content items",
		},
		[]string{"platform"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "magpie_proxy_failures_total",
			Help: "Total proxy failures during platform requests",
		},
		[]string{"proxy_url"},
	)
)

// RecordRequest updates the request counter for one platform API call.
func RecordRequest(platform string, statusCode int, err error) {
	status := strconv.Itoa(statusCode)
	if err != nil {
		status = "error"
	}
	APIRequestsTotal.WithLabelValues(platform, status).Inc()
}

// RecordSearch updates the per-platform search outcome counter.
func RecordSearch(platform string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	SearchesTotal.WithLabelValues(platform, outcome).Inc()
}

// RecordRun observes a finished orchestration run.
func RecordRun(status string, duration time.Duration) {
	SearchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
