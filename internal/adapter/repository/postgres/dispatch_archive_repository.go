package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/chat-relay/internal/domain"
)

const dispatchTempTable = "dispatch_log_temp_import"

// DispatchArchiveRepository implements domain.DispatchSink for PostgreSQL.
type DispatchArchiveRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDispatchArchiveRepository creates a new PostgreSQL dispatch archive.
func NewDispatchArchiveRepository(db *sql.DB, logger *slog.Logger) *DispatchArchiveRepository {
	return &DispatchArchiveRepository{db: db, logger: logger}
}

// WriteBatch writes a batch of dispatch records using the COPY protocol.
// Records are upserted by dispatch_id so a batch archived twice after a
// failed acknowledgement stays idempotent.
func (r *DispatchArchiveRepository) WriteBatch(ctx context.Context, records []domain.DispatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+dispatchTempTable+` (LIKE dispatch_log INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn(dispatchTempTable, "dispatch_id", "tenant_id", "target", "chat_id", "outcome", "error", "duration_ms", "dispatched_at"))
	if err != nil {
		return err
	}

	for _, rec := range records {
		_, err = stmt.ExecContext(ctx, rec.ID, rec.TenantID, rec.Target, rec.ChatID, string(rec.Outcome), rec.Error, rec.DurationMS, rec.At)
		if err != nil {
			_ = stmt.Close()
			return err
		}
	}

	if err := stmt.Close(); err != nil {
		return err
	}

	upsertQuery := `
		INSERT INTO dispatch_log (dispatch_id, tenant_id, target, chat_id, outcome, error, duration_ms, dispatched_at)
		SELECT dispatch_id, tenant_id, target, chat_id, outcome, error, duration_ms, dispatched_at FROM ` + dispatchTempTable + `
		ON CONFLICT (dispatch_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			error = EXCLUDED.error,
			duration_ms = EXCLUDED.duration_ms;
	`
	if _, err = txn.ExecContext(ctx, upsertQuery); err != nil {
		return err
	}

	return txn.Commit()
}
