package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/banktl/atmwatch/internal/models"
	"github.com/banktl/atmwatch/internal/persistence"
)

// regional_atm_counts predates the JSONB tables and carries the same
// semantic payload minus the raw blob. Writes only happen when the
// legacy path is selected; dashboards still read from both.
const legacySchema = `
CREATE TABLE IF NOT EXISTS regional_atm_counts (
	id SERIAL PRIMARY KEY,
	unique_request_id UUID,
	region_code VARCHAR(10),
	date_creation TIMESTAMP WITH TIME ZONE,
	count_available INTEGER,
	count_warning INTEGER,
	count_zombie INTEGER,
	count_wounded INTEGER,
	count_out_of_service INTEGER,
	percentage_available NUMERIC(10,8),
	percentage_warning NUMERIC(10,8),
	percentage_zombie NUMERIC(10,8),
	percentage_wounded NUMERIC(10,8),
	percentage_out_of_service NUMERIC(10,8),
	total_atms_in_region INTEGER
);
CREATE INDEX IF NOT EXISTS idx_regional_atm_counts_region_date
	ON regional_atm_counts (region_code, date_creation DESC);
`

type legacyRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewLegacyRepo creates the regional_atm_counts repository.
func NewLegacyRepo(db *sqlx.DB, timeout time.Duration) persistence.LegacyRepo {
	return &legacyRepo{db: db, timeout: timeout}
}

func (r *legacyRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, legacySchema); err != nil {
		return fmt.Errorf("failed to ensure regional_atm_counts schema: %w", err)
	}
	return nil
}

func (r *legacyRepo) Insert(ctx context.Context, snap models.RegionalSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO regional_atm_counts (
			unique_request_id, region_code, date_creation,
			count_available, count_warning, count_zombie,
			count_wounded, count_out_of_service,
			percentage_available, percentage_warning,
			percentage_zombie, percentage_wounded,
			percentage_out_of_service, total_atms_in_region)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		snap.UniqueRequestID, snap.RegionCode, snap.DateCreation,
		snap.CountAvailable, snap.CountWarning, snap.CountZombie,
		snap.CountWounded, snap.CountOutOfService,
		snap.PercentageAvailable, snap.PercentageWarning,
		snap.PercentageZombie, snap.PercentageWounded,
		snap.PercentageOutOfService, snap.TotalATMsInRegion)
	if err != nil {
		return fmt.Errorf("failed to insert legacy regional counts: %w", err)
	}
	return nil
}
