package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finmentor/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ReportCache keeps rendered evaluation reports and their risk charts in
// Redis so repeated reads skip Postgres. All methods are no-ops on a nil
// client, which keeps callers unconditional when Redis is not configured.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttlSecs int) *ReportCache {
	if ttlSecs <= 0 {
		ttlSecs = 300
	}
	return &ReportCache{client: client, ttl: time.Duration(ttlSecs) * time.Second}
}

func reportKey(userID, month string) string {
	return fmt.Sprintf("report:%s:%s", userID, month)
}

func chartKey(userID, month string) string {
	return fmt.Sprintf("chart:%s:%s", userID, month)
}

func (c *ReportCache) GetReport(ctx context.Context, userID, month string) (*domain.Report, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, reportKey(userID, month)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &report, nil
}

func (c *ReportCache) SetReport(ctx context.Context, report *domain.Report) error {
	if c == nil || c.client == nil || report == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	key := reportKey(report.Metadata.UserID, report.Metadata.Month)
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *ReportCache) GetChart(ctx context.Context, userID, month string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, chartKey(userID, month)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *ReportCache) SetChart(ctx context.Context, userID, month string, png []byte) error {
	if c == nil || c.client == nil || len(png) == 0 {
		return nil
	}
	return c.client.Set(ctx, chartKey(userID, month), png, c.ttl).Err()
}

// Invalidate drops both the report and chart entries for a user month. Called
// after a fresh evaluation so stale charts never outlive their report.
func (c *ReportCache) Invalidate(ctx context.Context, userID, month string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, reportKey(userID, month), chartKey(userID, month)).Err()
}
