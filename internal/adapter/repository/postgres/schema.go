package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenant_credentials (
	tenant_id   TEXT PRIMARY KEY,
	secret_hash TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS dispatch_log (
	dispatch_id   UUID PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	target        TEXT NOT NULL,
	chat_id       TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	dispatched_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS dispatch_log_tenant_time_idx ON dispatch_log (tenant_id, dispatched_at DESC);
`

// EnsureSchema creates the relay tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
