package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"finmentor/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T, ttlSecs int) (*ReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewReportCache(client, ttlSecs), mr
}

func sampleReport() *domain.Report {
	return &domain.Report{
		Metadata: domain.Metadata{
			UserID:        "u-1",
			Month:         "2025-07",
			Persona:       "gig_worker",
			Currency:      "₹",
			GeneratedAt:   "2025-08-01T10:30:00Z",
			EngineVersion: "1.0.0",
			EngineMode:    "declarative",
			Confidence:    1.0,
		},
		RuleTriggers: []domain.RuleTrigger{
			{
				RuleID:    "R-DEFICIT-01",
				Triggered: true,
				Severity:  domain.SeverityHigh,
				Weight:    2.0,
				Params:    map[string]any{"gap_amt": 6000.0},
				Reason:    "Current expenses exceed current income by 6000",
			},
		},
		Alerts: []string{},
	}
}

func TestReportCacheRoundTrip(t *testing.T) {
	cache, _ := testCache(t, 60)
	ctx := context.Background()

	if err := cache.SetReport(ctx, sampleReport()); err != nil {
		t.Fatalf("set report failed: %v", err)
	}
	got, err := cache.GetReport(ctx, "u-1", "2025-07")
	if err != nil {
		t.Fatalf("get report failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached report")
	}
	if got.Metadata.UserID != "u-1" || got.Metadata.Month != "2025-07" {
		t.Fatalf("unexpected metadata: %+v", got.Metadata)
	}
	if len(got.RuleTriggers) != 1 || got.RuleTriggers[0].RuleID != "R-DEFICIT-01" {
		t.Fatalf("unexpected triggers: %+v", got.RuleTriggers)
	}
	if v, ok := got.RuleTriggers[0].Params["gap_amt"].(float64); !ok || v != 6000 {
		t.Fatalf("expected gap_amt param to survive the round trip, got %v", got.RuleTriggers[0].Params["gap_amt"])
	}
}

func TestReportCacheMiss(t *testing.T) {
	cache, _ := testCache(t, 60)

	got, err := cache.GetReport(context.Background(), "nobody", "2025-01")
	if err != nil {
		t.Fatalf("miss should not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}

func TestReportCacheExpiry(t *testing.T) {
	cache, mr := testCache(t, 1)
	ctx := context.Background()

	if err := cache.SetReport(ctx, sampleReport()); err != nil {
		t.Fatalf("set report failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	got, err := cache.GetReport(ctx, "u-1", "2025-07")
	if err != nil {
		t.Fatalf("get after expiry failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected expired entry to be gone")
	}
}

func TestReportCacheChartRoundTrip(t *testing.T) {
	cache, _ := testCache(t, 60)
	ctx := context.Background()
	png := []byte{0x89, 0x50, 0x4e, 0x47}

	if err := cache.SetChart(ctx, "u-1", "2025-07", png); err != nil {
		t.Fatalf("set chart failed: %v", err)
	}
	got, err := cache.GetChart(ctx, "u-1", "2025-07")
	if err != nil {
		t.Fatalf("get chart failed: %v", err)
	}
	if !bytes.Equal(got, png) {
		t.Fatalf("chart bytes mismatch: %v", got)
	}
}

func TestReportCacheInvalidateDropsReportAndChart(t *testing.T) {
	cache, _ := testCache(t, 60)
	ctx := context.Background()

	if err := cache.SetReport(ctx, sampleReport()); err != nil {
		t.Fatalf("set report failed: %v", err)
	}
	if err := cache.SetChart(ctx, "u-1", "2025-07", []byte{1, 2, 3}); err != nil {
		t.Fatalf("set chart failed: %v", err)
	}
	if err := cache.Invalidate(ctx, "u-1", "2025-07"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	report, err := cache.GetReport(ctx, "u-1", "2025-07")
	if err != nil || report != nil {
		t.Fatalf("expected report gone, got %+v err %v", report, err)
	}
	chart, err := cache.GetChart(ctx, "u-1", "2025-07")
	if err != nil || chart != nil {
		t.Fatalf("expected chart gone, got %v err %v", chart, err)
	}
}

func TestReportCacheNilClientIsNoop(t *testing.T) {
	cache := NewReportCache(nil, 0)
	ctx := context.Background()

	if err := cache.SetReport(ctx, sampleReport()); err != nil {
		t.Fatalf("nil-client set should be a no-op: %v", err)
	}
	got, err := cache.GetReport(ctx, "u-1", "2025-07")
	if err != nil || got != nil {
		t.Fatalf("nil-client get should miss quietly, got %+v err %v", got, err)
	}
	if err := cache.Invalidate(ctx, "u-1", "2025-07"); err != nil {
		t.Fatalf("nil-client invalidate should be a no-op: %v", err)
	}
}
