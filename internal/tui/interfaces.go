package tui

import (
	"context"

	"finmentor/internal/domain"
	"finmentor/internal/engine"
)

// EvaluationQuerier provides stored-report data to the TUI.
type EvaluationQuerier interface {
	ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error)
	LatestReport(ctx context.Context, userID string) (*domain.Report, error)
	ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error)
}

// AdvisorQuerier provides LLM advisor access to the TUI.
type AdvisorQuerier interface {
	Ask(ctx context.Context, chatID int64, message string) (string, error)
}

// RuleQuerier provides the rule registry to the TUI.
type RuleQuerier interface {
	Rules() []engine.RuleDefinition
	RulesByBucket(bucket string) []engine.RuleDefinition
	Groups() map[string]engine.RuleGroup
}

// SSHChatIDOffset is the base offset for generating synthetic chat IDs
// for SSH users. The final chat ID is SSHChatIDOffset - user.ID.
// This avoids collisions with Telegram chat IDs.
const SSHChatIDOffset int64 = -1_000_000

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Evaluations EvaluationQuerier
	Advisor     AdvisorQuerier
	Rules       RuleQuerier
	UserID      int64
	Username    string
}

// ChatID returns the synthetic chat ID for this SSH session.
func (s Services) ChatID() int64 {
	return SSHChatIDOffset - s.UserID
}
