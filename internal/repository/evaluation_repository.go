package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"finmentor/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const evaluationSchema = `
CREATE TABLE IF NOT EXISTS evaluations (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    month TEXT NOT NULL,
    persona TEXT NOT NULL DEFAULT 'default',
    top_severity TEXT NOT NULL DEFAULT 'none',
    score DOUBLE PRECISION NOT NULL DEFAULT 0,
    engine_version TEXT NOT NULL DEFAULT '',
    report JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, month)
);
CREATE INDEX IF NOT EXISTS idx_evaluations_user_month ON evaluations (user_id, month DESC);
CREATE INDEX IF NOT EXISTS idx_evaluations_severity ON evaluations (top_severity, created_at DESC);
`

// EvaluationRepository stores one report per (user, month); re-evaluating a
// month replaces the stored report and refreshes created_at, so retention
// counts from the last write.
type EvaluationRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewEvaluationRepository(pool PgxPool, tracer trace.Tracer) *EvaluationRepository {
	return &EvaluationRepository{pool: pool, tracer: tracer}
}

func (r *EvaluationRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "evaluation-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, evaluationSchema)
	return err
}

func (r *EvaluationRepository) InsertReport(ctx context.Context, report *domain.Report) (*domain.EvaluationSummary, error) {
	if report == nil {
		return nil, errors.New("nil report")
	}

	_, span := r.tracer.Start(ctx, "evaluation-repo.insert-report")
	defer span.End()

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	summary := domain.EvaluationSummary{
		UserID:        report.Metadata.UserID,
		Month:         report.Metadata.Month,
		Persona:       report.Metadata.Persona,
		TopSeverity:   report.TopSeverity(),
		Score:         report.OverallScore(),
		EngineVersion: report.Metadata.EngineVersion,
	}

	var createdAt time.Time
	err = r.pool.QueryRow(ctx,
		`INSERT INTO evaluations (user_id, month, persona, top_severity, score, engine_version, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
		 ON CONFLICT (user_id, month) DO UPDATE SET
		     persona = EXCLUDED.persona,
		     top_severity = EXCLUDED.top_severity,
		     score = EXCLUDED.score,
		     engine_version = EXCLUDED.engine_version,
		     report = EXCLUDED.report,
		     created_at = NOW()
		 RETURNING id, created_at`,
		summary.UserID,
		summary.Month,
		summary.Persona,
		string(summary.TopSeverity),
		summary.Score,
		summary.EngineVersion,
		string(raw),
	).Scan(&summary.ID, &createdAt)
	if err != nil {
		return nil, err
	}
	summary.CreatedAt = createdAt.UTC()
	return &summary, nil
}

func (r *EvaluationRepository) GetLatest(ctx context.Context, userID string) (*domain.Report, error) {
	_, span := r.tracer.Start(ctx, "evaluation-repo.get-latest")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT report FROM evaluations WHERE user_id = $1 ORDER BY month DESC LIMIT 1`,
		userID,
	)
	return scanReport(row)
}

func (r *EvaluationRepository) GetByMonth(ctx context.Context, userID, month string) (*domain.Report, error) {
	_, span := r.tracer.Start(ctx, "evaluation-repo.get-by-month")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT report FROM evaluations WHERE user_id = $1 AND month = $2`,
		userID, month,
	)
	return scanReport(row)
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var raw []byte
	err := row.Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report domain.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode stored report: %w", err)
	}
	return &report, nil
}

func (r *EvaluationRepository) List(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error) {
	_, span := r.tracer.Start(ctx, "evaluation-repo.list")
	defer span.End()

	args := make([]any, 0, 5)
	var sb strings.Builder
	sb.WriteString(`SELECT id, user_id, month, persona, top_severity, score, engine_version, created_at
		FROM evaluations
		WHERE 1=1`)

	if filter.UserID != "" {
		args = append(args, strings.TrimSpace(filter.UserID))
		sb.WriteString(fmt.Sprintf(" AND user_id = $%d", len(args)))
	}
	if filter.Persona != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Persona)))
		sb.WriteString(fmt.Sprintf(" AND persona = $%d", len(args)))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		sb.WriteString(fmt.Sprintf(" AND top_severity = $%d", len(args)))
	}
	if filter.Month != "" {
		args = append(args, strings.TrimSpace(filter.Month))
		sb.WriteString(fmt.Sprintf(" AND month = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.EvaluationSummary, 0, limit)
	for rows.Next() {
		var s domain.EvaluationSummary
		var severity string
		var createdAt time.Time
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Month,
			&s.Persona,
			&severity,
			&s.Score,
			&s.EngineVersion,
			&createdAt,
		); err != nil {
			return nil, err
		}
		s.TopSeverity = domain.Severity(severity)
		s.CreatedAt = createdAt.UTC()
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *EvaluationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "evaluation-repo.delete-older-than")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM evaluations WHERE created_at <= $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
