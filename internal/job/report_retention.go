package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const retentionTick = 12 * time.Hour

type ReportPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReportRetention periodically prunes stored reports past the retention window.
type ReportRetention struct {
	tracer        trace.Tracer
	pruner        ReportPruner
	retentionDays int
}

func NewReportRetention(tracer trace.Tracer, pruner ReportPruner, retentionDays int) *ReportRetention {
	return &ReportRetention{
		tracer:        tracer,
		pruner:        pruner,
		retentionDays: retentionDays,
	}
}

// Start blocks until ctx is cancelled. Retention is disabled when the
// window is zero or negative.
func (j *ReportRetention) Start(ctx context.Context) {
	if j == nil || j.pruner == nil || j.retentionDays <= 0 {
		log.Println("Report retention disabled")
		<-ctx.Done()
		return
	}

	log.Printf("Report retention starting (window %d days)...", j.retentionDays)
	ticker := time.NewTicker(retentionTick)
	defer ticker.Stop()

	j.runPrune(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Report retention stopped")
			return
		case <-ticker.C:
			j.runPrune(ctx)
		}
	}
}

func (j *ReportRetention) runPrune(ctx context.Context) {
	if j.tracer != nil {
		var span trace.Span
		ctx, span = j.tracer.Start(ctx, "retention-job.prune")
		defer span.End()
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("report retention error: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("report retention removed %d report(s)", deleted)
	}
}
