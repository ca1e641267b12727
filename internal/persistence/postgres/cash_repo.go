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

const cashSchema = `
CREATE TABLE IF NOT EXISTS terminal_cash_information (
	id SERIAL PRIMARY KEY,
	unique_request_id UUID,
	terminal_id VARCHAR(50) NOT NULL,
	business_code VARCHAR(50),
	technical_code VARCHAR(50),
	external_id VARCHAR(50),
	retrieval_timestamp TIMESTAMP WITH TIME ZONE,
	event_date TIMESTAMP WITH TIME ZONE,
	total_cash_amount NUMERIC(15,2),
	total_currency VARCHAR(10),
	cassettes_data JSONB,
	cassette_count INTEGER,
	has_low_cash_warning BOOLEAN,
	has_cash_errors BOOLEAN,
	is_null_record BOOLEAN,
	null_reason TEXT,
	raw_cash_data JSONB,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_cash_information_terminal
	ON terminal_cash_information (terminal_id);
CREATE INDEX IF NOT EXISTS idx_cash_information_ts
	ON terminal_cash_information (retrieval_timestamp DESC);
`

type cashRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCashRepo creates the terminal_cash_information repository.
func NewCashRepo(db *sqlx.DB, timeout time.Duration) persistence.CashRepo {
	return &cashRepo{db: db, timeout: timeout}
}

func (r *cashRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, cashSchema); err != nil {
		return fmt.Errorf("failed to ensure terminal_cash_information schema: %w", err)
	}
	return nil
}

func (r *cashRepo) InsertBatch(ctx context.Context, records []models.CashRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cash transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO terminal_cash_information (
			unique_request_id, terminal_id, business_code,
			technical_code, external_id, retrieval_timestamp,
			event_date, total_cash_amount, total_currency,
			cassettes_data, cassette_count, has_low_cash_warning,
			has_cash_errors, is_null_record, null_reason, raw_cash_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cash insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		cassettesJSON, err := json.Marshal(rec.Cassettes)
		if err != nil {
			return fmt.Errorf("failed to marshal cassettes for %s: %w", rec.TerminalID, err)
		}
		rawJSON, err := json.Marshal(rec.RawCashData)
		if err != nil {
			return fmt.Errorf("failed to marshal raw cash data for %s: %w", rec.TerminalID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			rec.UniqueRequestID, rec.TerminalID, rec.BusinessCode,
			rec.TechnicalCode, rec.ExternalID, rec.RetrievalTimestamp,
			rec.EventDate, rec.TotalCashAmount, rec.TotalCurrency,
			cassettesJSON, rec.CassetteCount, rec.HasLowCashWarning,
			rec.HasCashErrors, rec.IsNullRecord, rec.NullReason,
			rawJSON); err != nil {
			return fmt.Errorf("failed to insert cash record %s: %w", rec.TerminalID, err)
		}
	}
	return tx.Commit()
}
