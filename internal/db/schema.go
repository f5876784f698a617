package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the users table on startup if it is missing.
// The token columns are nullable on purpose: NULL means "no active session" /
// "no reset in flight", and the partial unique indexes keep a stored token
// resolvable to at most one user.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id              UUID PRIMARY KEY,
			email           TEXT NOT NULL,
			hashed_password TEXT NOT NULL,
			session_token   TEXT,
			reset_token     TEXT,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email);

		CREATE UNIQUE INDEX IF NOT EXISTS users_session_token_key
			ON users (session_token) WHERE session_token IS NOT NULL;

		CREATE UNIQUE INDEX IF NOT EXISTS users_reset_token_key
			ON users (reset_token) WHERE reset_token IS NOT NULL;
	`)

	return err
}
