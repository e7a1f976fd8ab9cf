package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const consoleUserSchema = `
CREATE TABLE IF NOT EXISTS console_users (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    public_key TEXT NOT NULL,
    key_type TEXT NOT NULL DEFAULT '',
    fingerprint TEXT NOT NULL UNIQUE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    last_login_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// ConsoleUser is an operator allowed into the SSH ops console, matched by
// the SHA256 fingerprint of their public key.
type ConsoleUser struct {
	ID          int64
	Username    string
	DisplayName string
	PublicKey   string
	KeyType     string
	Fingerprint string
	IsActive    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ConsoleUserRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewConsoleUserRepository(pool PgxPool, tracer trace.Tracer) *ConsoleUserRepository {
	return &ConsoleUserRepository{pool: pool, tracer: tracer}
}

func (r *ConsoleUserRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "console-user-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, consoleUserSchema)
	return err
}

func (r *ConsoleUserRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*ConsoleUser, error) {
	_, span := r.tracer.Start(ctx, "console-user-repo.find-by-fingerprint")
	defer span.End()

	row := r.pool.QueryRow(ctx,
		`SELECT id, username, display_name, public_key, key_type, fingerprint,
		        is_active, last_login_at, created_at, updated_at
		 FROM console_users
		 WHERE fingerprint = $1 AND is_active = TRUE`,
		fingerprint,
	)

	var u ConsoleUser
	var lastLogin *time.Time
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.PublicKey, &u.KeyType,
		&u.Fingerprint, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.LastLoginAt = lastLogin
	return &u, nil
}

func (r *ConsoleUserRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, span := r.tracer.Start(ctx, "console-user-repo.update-last-login")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE console_users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`,
		userID,
	)
	return err
}

func (r *ConsoleUserRepository) ListActive(ctx context.Context) ([]ConsoleUser, error) {
	_, span := r.tracer.Start(ctx, "console-user-repo.list-active")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, username, display_name, public_key, key_type, fingerprint,
		        is_active, last_login_at, created_at, updated_at
		 FROM console_users
		 WHERE is_active = TRUE
		 ORDER BY username ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []ConsoleUser
	for rows.Next() {
		var u ConsoleUser
		var lastLogin *time.Time
		if err := rows.Scan(
			&u.ID, &u.Username, &u.DisplayName, &u.PublicKey, &u.KeyType,
			&u.Fingerprint, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		u.LastLoginAt = lastLogin
		users = append(users, u)
	}
	return users, rows.Err()
}
