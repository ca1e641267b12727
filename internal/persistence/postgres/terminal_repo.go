package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/banktl/atmwatch/internal/models"
	"github.com/banktl/atmwatch/internal/persistence"
)

const terminalSchema = `
CREATE TABLE IF NOT EXISTS terminal_details (
	id SERIAL PRIMARY KEY,
	unique_request_id UUID,
	terminal_id VARCHAR(50) NOT NULL,
	location TEXT,
	issue_state_name VARCHAR(50),
	serial_number VARCHAR(50),
	retrieved_date TIMESTAMP WITH TIME ZONE NOT NULL,
	fetched_status VARCHAR(50) NOT NULL,
	raw_terminal_data JSONB NOT NULL,
	fault_data JSONB,
	metadata JSONB,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_terminal_details_terminal_date
	ON terminal_details (terminal_id, retrieved_date DESC);
CREATE INDEX IF NOT EXISTS idx_terminal_details_fetched_status
	ON terminal_details (fetched_status);
CREATE INDEX IF NOT EXISTS idx_terminal_details_raw
	ON terminal_details USING GIN (raw_terminal_data);
CREATE INDEX IF NOT EXISTS idx_terminal_details_fault
	ON terminal_details USING GIN (fault_data);
CREATE INDEX IF NOT EXISTS idx_terminal_details_metadata
	ON terminal_details USING GIN (metadata);
`

type terminalRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTerminalRepo creates the terminal_details repository.
func NewTerminalRepo(db *sqlx.DB, timeout time.Duration) persistence.TerminalRepo {
	return &terminalRepo{db: db, timeout: timeout}
}

func (r *terminalRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, terminalSchema); err != nil {
		return fmt.Errorf("failed to ensure terminal_details schema: %w", err)
	}
	return nil
}

// InsertBatch appends all observations of one cycle in a single
// transaction. The whole stream rolls back together so a partial cycle
// never persists.
func (r *terminalRepo) InsertBatch(ctx context.Context, records []models.TerminalStatusRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin terminal_details transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO terminal_details (
			unique_request_id, terminal_id, location, issue_state_name,
			serial_number, retrieved_date, fetched_status,
			raw_terminal_data, fault_data, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("failed to prepare terminal insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		rawJSON, err := json.Marshal(rec.RawTerminalData)
		if err != nil {
			return fmt.Errorf("failed to marshal raw terminal data for %s: %w", rec.TerminalID, err)
		}
		faultJSON, err := json.Marshal(rec.FaultData)
		if err != nil {
			return fmt.Errorf("failed to marshal fault data for %s: %w", rec.TerminalID, err)
		}
		metaJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", rec.TerminalID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			rec.UniqueRequestID, rec.TerminalID, rec.Location,
			rec.IssueStateName, rec.SerialNumber, rec.RetrievedDate,
			rec.FetchedStatus, rawJSON, faultJSON, metaJSON); err != nil {
			return fmt.Errorf("failed to insert terminal record %s: %w", rec.TerminalID, err)
		}
	}
	return tx.Commit()
}
