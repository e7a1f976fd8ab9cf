package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"finmentor/internal/domain"
)

func TestAlertWatcherPrimesThenNotifiesNewReports(t *testing.T) {
	source := &stubWatcherSource{
		summaries: []domain.EvaluationSummary{
			{ID: 1, UserID: "u-1", Month: "2025-05", TopSeverity: domain.SeverityHigh},
		},
		reports: map[string]*domain.Report{
			"u-1:2025-05": {Metadata: domain.Metadata{UserID: "u-1", Month: "2025-05"}},
			"u-1:2025-06": {Metadata: domain.Metadata{UserID: "u-1", Month: "2025-06"}},
		},
	}
	sink := &stubWatcherSink{}
	watcher := NewAlertWatcher(nil, source, 0, sink)

	// First poll primes the seen set without notifying.
	watcher.runPoll(context.Background(), false)
	if sink.count() != 0 {
		t.Fatalf("priming poll must not notify, got %d", sink.count())
	}

	// A repeat of the same rows stays silent.
	watcher.runPoll(context.Background(), true)
	if sink.count() != 0 {
		t.Fatalf("already-seen rows must not notify, got %d", sink.count())
	}

	// A new row triggers exactly one notification.
	source.setSummaries([]domain.EvaluationSummary{
		{ID: 1, UserID: "u-1", Month: "2025-05", TopSeverity: domain.SeverityHigh},
		{ID: 2, UserID: "u-1", Month: "2025-06", TopSeverity: domain.SeverityHigh},
	})
	watcher.runPoll(context.Background(), true)
	if sink.count() != 1 {
		t.Fatalf("expected one notification, got %d", sink.count())
	}
	if got := sink.last(); got == nil || got.Metadata.Month != "2025-06" {
		t.Fatalf("unexpected notified report: %+v", got)
	}

	watcher.runPoll(context.Background(), true)
	if sink.count() != 1 {
		t.Fatalf("expected no repeat notification, got %d", sink.count())
	}
}

func TestAlertWatcherStartStopsOnCancel(t *testing.T) {
	source := &stubWatcherSource{}
	watcher := NewAlertWatcher(nil, source, 10*time.Millisecond, &stubWatcherSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watcher.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("alert watcher did not stop")
	}

	if source.listCalls() == 0 {
		t.Fatal("expected at least one poll")
	}
}

func TestAlertWatcherDisabledWithoutSinks(t *testing.T) {
	source := &stubWatcherSource{}
	watcher := NewAlertWatcher(nil, source, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watcher.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("alert watcher did not stop")
	}

	if source.listCalls() != 0 {
		t.Fatal("expected zero polls without sinks")
	}
}

type stubWatcherSource struct {
	mu        sync.Mutex
	summaries []domain.EvaluationSummary
	reports   map[string]*domain.Report
	lists     int
}

func (s *stubWatcherSource) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return append([]domain.EvaluationSummary(nil), s.summaries...), nil
}

func (s *stubWatcherSource) ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[userID+":"+month], nil
}

func (s *stubWatcherSource) setSummaries(summaries []domain.EvaluationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = summaries
}

func (s *stubWatcherSource) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

type stubWatcherSink struct {
	mu      sync.Mutex
	reports []*domain.Report
}

func (s *stubWatcherSink) NotifyReport(ctx context.Context, report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *stubWatcherSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func (s *stubWatcherSink) last() *domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return nil
	}
	return s.reports[len(s.reports)-1]
}
