package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the account table and the ownership tables whose rows
// are removed together with an account. It is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE CHECK (email = lower(email)),
	password_hash TEXT NOT NULL,
	account_type TEXT NOT NULL DEFAULT 'AccountPending',
	is_email_verified BOOLEAN NOT NULL DEFAULT false,
	twofa_code TEXT,
	twofa_expires_at TIMESTAMPTZ,
	password_reset_token_hash TEXT UNIQUE,
	password_reset_expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_account_type ON accounts(account_type);

CREATE TABLE IF NOT EXISTS games (
	id BIGSERIAL PRIMARY KEY,
	owner_account_id TEXT NOT NULL REFERENCES accounts(id),
	universe_id BIGINT NOT NULL,
	name TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS brands (
	id BIGSERIAL PRIMARY KEY,
	owner_account_id TEXT NOT NULL REFERENCES accounts(id),
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS campaigns (
	id BIGSERIAL PRIMARY KEY,
	brand_id BIGINT NOT NULL REFERENCES brands(id),
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS lead_submissions (
	id BIGSERIAL PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	payload JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bookings (
	id BIGSERIAL PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	preferred_time TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'requested',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
