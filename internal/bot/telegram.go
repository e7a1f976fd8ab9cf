package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"finmentor/internal/domain"

	tele "gopkg.in/telebot.v3"
)

var monthArgRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

type ReportQuerier interface {
	LatestReport(ctx context.Context, userID string) (*domain.Report, error)
	ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error)
	ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error)
	RiskChart(ctx context.Context, userID, month string) ([]byte, error)
}

type Advisor interface {
	Ask(ctx context.Context, chatID int64, message string) (string, error)
}

func StartTelegramBot(evaluations ReportQuerier, advisorService Advisor) *AlertDispatcher {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/latest", func(c tele.Context) error {
		if evaluations == nil {
			return c.Send("Evaluation service unavailable")
		}
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /latest <user>")
		}
		userID := strings.TrimSpace(args[0])

		report, err := evaluations.LatestReport(context.Background(), userID)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching report for %s: %v", userID, err))
		}
		if report == nil {
			return c.Send(fmt.Sprintf("No stored report for %s yet.", userID))
		}
		return c.Send(formatReport(report))
	})

	b.Handle("/risks", func(c tele.Context) error {
		if evaluations == nil {
			return c.Send("Evaluation service unavailable")
		}
		userID, month, err := parseRisksArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /risks <user> [YYYY-MM]")
		}

		var report *domain.Report
		if month != "" {
			report, err = evaluations.ReportForMonth(context.Background(), userID, month)
		} else {
			report, err = evaluations.LatestReport(context.Background(), userID)
		}
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching risks for %s: %v", userID, err))
		}
		if report == nil {
			return c.Send(fmt.Sprintf("No stored report for %s.", userID))
		}
		return sendRisksWithOptionalChart(c, evaluations, report)
	})

	b.Handle("/evaluations", func(c tele.Context) error {
		if evaluations == nil {
			return c.Send("Evaluation service unavailable")
		}
		filter, err := parseEvaluationArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /evaluations [user] [--persona gig_worker] [--severity high]")
		}

		summaries, err := evaluations.ListEvaluations(context.Background(), filter)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching evaluations: %v", err))
		}
		if len(summaries) == 0 {
			return c.Send("No matching evaluations.")
		}

		lines := make([]string, 0, len(summaries)+1)
		lines = append(lines, "Recent evaluations:")
		for _, s := range summaries {
			lines = append(lines, formatSummaryRow(s))
		}
		return c.Send(strings.Join(lines, "\n"))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Proactive alerts enabled for this chat.")
			}
			return c.Send("Proactive alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Proactive alerts disabled for this chat.")
			}
			return c.Send("Proactive alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	b.Handle("/ask", func(c tele.Context) error {
		if advisorService == nil {
			return c.Send("Advisor not configured. Set OPENAI_API_KEY to enable.")
		}
		question := strings.TrimSpace(c.Message().Payload)
		if question == "" {
			return c.Send("Usage: /ask <question>\nExample: /ask How do I rebuild my emergency fund?")
		}
		return handleAdvisorQuery(c, advisorService, question)
	})

	b.Handle(tele.OnText, func(c tele.Context) error {
		if advisorService == nil {
			return nil
		}
		text := strings.TrimSpace(c.Text())
		if text == "" {
			return nil
		}
		return handleAdvisorQuery(c, advisorService, text)
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func handleAdvisorQuery(c tele.Context, adv Advisor, question string) error {
	_ = c.Notify(tele.Typing)

	reply, err := adv.Ask(context.Background(), c.Chat().ID, question)
	if err != nil {
		log.Printf("advisor error for chat %d: %v", c.Chat().ID, err)
		return c.Send("Sorry, I'm having trouble right now. Try /latest or /risks for raw data.")
	}

	if len(reply) > 4000 {
		reply = reply[:4000] + "\n\n[truncated]"
	}

	return c.Send(reply)
}

func parseRisksArgs(args []string) (string, string, error) {
	if len(args) == 0 {
		return "", "", errors.New("missing user")
	}
	userID := strings.TrimSpace(args[0])
	if userID == "" || strings.HasPrefix(userID, "--") {
		return "", "", errors.New("missing user")
	}

	month := ""
	if len(args) > 1 {
		month = strings.TrimSpace(args[1])
		if !monthArgRe.MatchString(month) {
			return "", "", errors.New("invalid month")
		}
	}
	if len(args) > 2 {
		return "", "", errors.New("too many arguments")
	}
	return userID, month, nil
}

func parseEvaluationArgs(args []string) (domain.EvaluationFilter, error) {
	filter := domain.EvaluationFilter{Limit: 10}

	for i := 0; i < len(args); i++ {
		arg := strings.TrimSpace(args[i])
		if arg == "" {
			continue
		}

		if value, ok := strings.CutPrefix(arg, "--persona="); ok {
			filter.Persona = strings.ToLower(value)
			continue
		}
		if arg == "--persona" {
			if i+1 >= len(args) {
				return domain.EvaluationFilter{}, errors.New("missing persona value")
			}
			i++
			filter.Persona = strings.ToLower(strings.TrimSpace(args[i]))
			continue
		}

		if value, ok := strings.CutPrefix(arg, "--severity="); ok {
			severity := domain.Severity(strings.ToLower(value))
			if !severity.IsValid() {
				return domain.EvaluationFilter{}, errors.New("invalid severity")
			}
			filter.Severity = severity
			continue
		}
		if arg == "--severity" {
			if i+1 >= len(args) {
				return domain.EvaluationFilter{}, errors.New("missing severity value")
			}
			i++
			severity := domain.Severity(strings.ToLower(strings.TrimSpace(args[i])))
			if !severity.IsValid() {
				return domain.EvaluationFilter{}, errors.New("invalid severity")
			}
			filter.Severity = severity
			continue
		}

		if strings.HasPrefix(arg, "--") {
			return domain.EvaluationFilter{}, errors.New("unknown option")
		}
		if filter.UserID != "" {
			return domain.EvaluationFilter{}, errors.New("multiple users provided")
		}
		filter.UserID = arg
	}

	return filter, nil
}

func formatReport(r *domain.Report) string {
	lines := []string{
		fmt.Sprintf("%s %s (%s)", r.Metadata.UserID, r.Metadata.Month, r.Metadata.Persona),
		fmt.Sprintf("Top severity: %s | Overall score: %.0f", strings.ToUpper(string(r.TopSeverity())), r.OverallScore()),
	}
	for _, risk := range r.Risks {
		if risk.Severity == domain.SeverityNone {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s [%s] %.0f: %s", risk.Dimension, risk.Severity, risk.Score, risk.Summary))
	}
	if len(r.Recommendations) > 0 {
		lines = append(lines, "Top recommendation: "+r.Recommendations[0].Title)
	}
	return strings.Join(lines, "\n")
}

func formatSummaryRow(s domain.EvaluationSummary) string {
	return fmt.Sprintf(
		"#%d %s %s %s %s score %.0f at %s",
		s.ID,
		s.UserID,
		s.Month,
		s.Persona,
		strings.ToUpper(string(s.TopSeverity)),
		s.Score,
		s.CreatedAt.UTC().Format(time.RFC822),
	)
}

func sendRisksWithOptionalChart(c tele.Context, evaluations ReportQuerier, r *domain.Report) error {
	caption := formatReport(r)

	chart, err := evaluations.RiskChart(context.Background(), r.Metadata.UserID, r.Metadata.Month)
	if err != nil || len(chart) == 0 {
		return c.Send(caption)
	}

	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(chart)),
		Caption: caption,
	}
	return c.Send(photo)
}
