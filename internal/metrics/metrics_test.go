package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8888)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	// Record a few events to verify metrics format correctly
	RecordRequest("bilibili", 200, nil)
	RecordRequest("douyin", 0, errors.New("timeout"))
	RecordSearch("bilibili", nil)
	RecordSearch("zhihu", errors.New("risk control"))
	RecordRun("partial", 3*time.Second)
	RiskControlHits.WithLabelValues("xiaohongshu", "slider_captcha").Inc()
	CommentsFetched.WithLabelValues("bilibili").Add(10)

	resp, err := http.Get("http://localhost:8888/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	if !strings.Contains(output, `magpie_platform_requests_total{platform="bilibili",status="200"}`) {
		t.Errorf("expected request counter for bilibili")
	}
	if !strings.Contains(output, `magpie_platform_requests_total{platform="douyin",status="error"}`) {
		t.Errorf("expected error-status request counter for douyin")
	}
	if !strings.Contains(output, `magpie_platform_searches_total{outcome="failure",platform="zhihu"}`) {
		t.Errorf("expected failure search counter for zhihu")
	}
	if !strings.Contains(output, `magpie_search_duration_seconds_bucket`) {
		t.Errorf("expected search duration histogram")
	}
	if !strings.Contains(output, `magpie_risk_control_hits_total{platform="xiaohongshu",source="slider_captcha"}`) {
		t.Errorf("expected risk control counter")
	}
}
