package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"finmentor/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/trace"
)

const advisorSystemPrompt = `You are a cautious personal-finance coach for Indian gig workers and
salaried users. You explain risk reports in plain language, suggest small
concrete next steps, and never promise returns or recommend specific
investment products. Amounts are in rupees. Keep answers under 200 words.`

const defaultAdvisorHistory = 20

type ConversationStore interface {
	AppendMessage(ctx context.Context, chatID int64, role, content string) error
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]domain.ConversationMessage, error)
}

// ChatCompleter is the slice of the OpenAI client the advisor needs.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

type openAICompleter struct {
	client openai.Client
	model  string
}

func (c *openAICompleter) Complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(0.4),
		MaxTokens:   openai.Int(600),
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return completion.Choices[0].Message.Content, nil
}

// NewOpenAICompleter builds the production ChatCompleter. Returns nil when no
// API key is configured so callers can disable the advisor cleanly.
func NewOpenAICompleter(apiKey, model string) ChatCompleter {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return &openAICompleter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// LatestReporter supplies the report an answer should be grounded in.
type LatestReporter interface {
	LatestReport(ctx context.Context, userID string) (*domain.Report, error)
}

// AdvisorService answers free-text questions grounded in the user's latest
// risk report, keeping a bounded per-chat history in Postgres.
type AdvisorService struct {
	tracer     trace.Tracer
	completer  ChatCompleter
	conv       ConversationStore
	reports    LatestReporter
	maxHistory int
}

func NewAdvisorService(
	tracer trace.Tracer,
	completer ChatCompleter,
	conv ConversationStore,
	reports LatestReporter,
	maxHistory int,
) *AdvisorService {
	if maxHistory <= 0 {
		maxHistory = defaultAdvisorHistory
	}
	return &AdvisorService{
		tracer:     tracer,
		completer:  completer,
		conv:       conv,
		reports:    reports,
		maxHistory: maxHistory,
	}
}

// Enabled reports whether an LLM backend is configured.
func (s *AdvisorService) Enabled() bool {
	return s != nil && s.completer != nil
}

// Ask answers one chat message. chatID scopes the conversation history; a
// non-empty userID grounds the answer in that user's latest report.
func (s *AdvisorService) Ask(ctx context.Context, chatID int64, message string) (string, error) {
	return s.AskAbout(ctx, chatID, "", message)
}

func (s *AdvisorService) AskAbout(ctx context.Context, chatID int64, userID, message string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor-service.ask")
	defer span.End()

	if !s.Enabled() {
		return "", fmt.Errorf("advisor is not configured")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("empty question")
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(advisorSystemPrompt),
	}
	if grounding := s.reportGrounding(ctx, userID); grounding != "" {
		messages = append(messages, openai.SystemMessage(grounding))
	}

	if s.conv != nil {
		history, err := s.conv.RecentMessages(ctx, chatID, s.maxHistory)
		if err != nil {
			log.Printf("advisor history read for chat %d: %v", chatID, err)
		}
		for _, m := range history {
			switch m.Role {
			case "user":
				messages = append(messages, openai.UserMessage(m.Content))
			case "assistant":
				messages = append(messages, openai.AssistantMessage(m.Content))
			}
		}
	}
	messages = append(messages, openai.UserMessage(message))

	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("advisor completion: %w", err)
	}

	if s.conv != nil {
		if err := s.conv.AppendMessage(ctx, chatID, "user", message); err != nil {
			log.Printf("advisor history write for chat %d: %v", chatID, err)
		}
		if err := s.conv.AppendMessage(ctx, chatID, "assistant", reply); err != nil {
			log.Printf("advisor history write for chat %d: %v", chatID, err)
		}
	}
	return reply, nil
}

// ReportAdvice turns a finished report into short narrative guidance for the
// HTTP advice endpoint. Stateless: no conversation history involved.
func (s *AdvisorService) ReportAdvice(ctx context.Context, report *domain.Report) (string, error) {
	ctx, span := s.tracer.Start(ctx, "advisor-service.report-advice")
	defer span.End()

	if !s.Enabled() {
		return "", fmt.Errorf("advisor is not configured")
	}
	if report == nil {
		return "", fmt.Errorf("nil report")
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(advisorSystemPrompt),
		openai.UserMessage("Summarize this month's risk report for the user and suggest the two most important actions:\n" + summarizeReport(report)),
	}
	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("advisor completion: %w", err)
	}
	return reply, nil
}

func (s *AdvisorService) reportGrounding(ctx context.Context, userID string) string {
	if s.reports == nil || strings.TrimSpace(userID) == "" {
		return ""
	}
	report, err := s.reports.LatestReport(ctx, userID)
	if err != nil {
		log.Printf("advisor grounding for %s: %v", userID, err)
		return ""
	}
	if report == nil {
		return ""
	}
	return "Latest evaluation for this user:\n" + summarizeReport(report)
}

func summarizeReport(report *domain.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "month %s, persona %s, overall score %.1f, top severity %s\n",
		report.Metadata.Month, report.Metadata.Persona,
		report.OverallScore(), report.TopSeverity())
	for _, risk := range report.Risks {
		fmt.Fprintf(&sb, "- %s: score %.1f severity %s (%s)\n",
			risk.Dimension, risk.Score, risk.Severity, risk.Summary)
	}
	for _, rec := range report.Recommendations {
		fmt.Fprintf(&sb, "* %s: %s\n", rec.ID, rec.Title)
	}
	return sb.String()
}
