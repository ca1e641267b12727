// Package persistence defines the storage contracts for the four
// write streams: regional aggregates, terminal details, cash
// information and the legacy count table.
package persistence

import (
	"context"

	"github.com/banktl/atmwatch/internal/models"
)

// RegionalRepo persists JSONB-backed regional snapshots.
type RegionalRepo interface {
	// EnsureSchema creates the table and indexes if absent.
	EnsureSchema(ctx context.Context) error

	// Insert appends one regional snapshot. Append-only; uniqueness is
	// carried by unique_request_id.
	Insert(ctx context.Context, snap models.RegionalSnapshot) error
}

// TerminalRepo persists per-terminal status observations.
type TerminalRepo interface {
	EnsureSchema(ctx context.Context) error

	// InsertBatch appends the cycle's observations in one transaction.
	InsertBatch(ctx context.Context, records []models.TerminalStatusRecord) error
}

// CashRepo persists per-terminal cash observations, null records
// included.
type CashRepo interface {
	EnsureSchema(ctx context.Context) error
	InsertBatch(ctx context.Context, records []models.CashRecord) error
}

// LegacyRepo persists the percentage+count rows of the legacy
// regional_atm_counts table.
type LegacyRepo interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, snap models.RegionalSnapshot) error
}

// Repository groups the stream repos behind one handle.
type Repository struct {
	Regional RegionalRepo
	Terminal TerminalRepo
	Cash     CashRepo
	Legacy   LegacyRepo
}
