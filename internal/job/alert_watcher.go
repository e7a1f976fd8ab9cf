package job

import (
	"context"
	"log"
	"time"

	"finmentor/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultAlertPoll = time.Minute

type AlertSink interface {
	NotifyReport(ctx context.Context, report *domain.Report) error
}

type ReportWatcherSource interface {
	ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error)
	ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error)
}

// AlertWatcher polls stored evaluations for fresh high-severity reports
// and pushes each one to the configured sinks exactly once.
type AlertWatcher struct {
	tracer trace.Tracer
	source ReportWatcherSource
	sinks  []AlertSink
	poll   time.Duration

	seen map[int64]struct{}
}

func NewAlertWatcher(tracer trace.Tracer, source ReportWatcherSource, poll time.Duration, sinks ...AlertSink) *AlertWatcher {
	if poll <= 0 {
		poll = defaultAlertPoll
	}
	return &AlertWatcher{
		tracer: tracer,
		source: source,
		sinks:  sinks,
		poll:   poll,
		seen:   make(map[int64]struct{}),
	}
}

// Start blocks until ctx is cancelled. The first poll only primes the
// seen set so restarts do not replay old alerts.
func (w *AlertWatcher) Start(ctx context.Context) {
	if w == nil || w.source == nil || len(w.sinks) == 0 {
		log.Println("Alert watcher disabled")
		<-ctx.Done()
		return
	}

	log.Printf("Alert watcher starting (poll %s)...", w.poll)
	w.runPoll(ctx, false)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Alert watcher stopped")
			return
		case <-ticker.C:
			w.runPoll(ctx, true)
		}
	}
}

func (w *AlertWatcher) runPoll(ctx context.Context, notify bool) {
	if w.tracer != nil {
		var span trace.Span
		ctx, span = w.tracer.Start(ctx, "alert-job.poll")
		defer span.End()
	}

	summaries, err := w.source.ListEvaluations(ctx, domain.EvaluationFilter{
		Severity: domain.SeverityHigh,
		Limit:    50,
	})
	if err != nil {
		log.Printf("alert watcher list error: %v", err)
		return
	}

	for _, summary := range summaries {
		if _, ok := w.seen[summary.ID]; ok {
			continue
		}
		w.seen[summary.ID] = struct{}{}
		if !notify {
			continue
		}
		w.dispatch(ctx, summary)
	}
}

func (w *AlertWatcher) dispatch(ctx context.Context, summary domain.EvaluationSummary) {
	report, err := w.source.ReportForMonth(ctx, summary.UserID, summary.Month)
	if err != nil {
		log.Printf("alert watcher fetch error for %s %s: %v", summary.UserID, summary.Month, err)
		return
	}
	if report == nil {
		return
	}

	for _, sink := range w.sinks {
		if sink == nil {
			continue
		}
		if err := sink.NotifyReport(ctx, report); err != nil {
			log.Printf("alert watcher sink error for %s %s: %v", summary.UserID, summary.Month, err)
		}
	}
}
