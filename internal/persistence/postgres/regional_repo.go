// Package postgres implements the persistence contracts over
// PostgreSQL with sqlx. Each repo creates its own schema on demand and
// each stream write runs in its own transaction, so a schema problem
// in one table never hides a successful harvest in another.
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

const regionalSchema = `
CREATE TABLE IF NOT EXISTS regional_data (
	id SERIAL PRIMARY KEY,
	unique_request_id UUID,
	region_code VARCHAR(10),
	retrieval_timestamp TIMESTAMP WITH TIME ZONE,
	raw_regional_data JSONB NOT NULL,
	count_available INTEGER,
	count_warning INTEGER,
	count_zombie INTEGER,
	count_wounded INTEGER,
	count_out_of_service INTEGER,
	total_atms_in_region INTEGER
);
CREATE INDEX IF NOT EXISTS idx_regional_data_region_ts
	ON regional_data (region_code, retrieval_timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_regional_data_raw
	ON regional_data USING GIN (raw_regional_data);
`

type regionalRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRegionalRepo creates the regional_data repository.
func NewRegionalRepo(db *sqlx.DB, timeout time.Duration) persistence.RegionalRepo {
	return &regionalRepo{db: db, timeout: timeout}
}

func (r *regionalRepo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, regionalSchema); err != nil {
		return fmt.Errorf("failed to ensure regional_data schema: %w", err)
	}
	return nil
}

func (r *regionalRepo) Insert(ctx context.Context, snap models.RegionalSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rawJSON, err := json.Marshal(snap.RawRegionalData)
	if err != nil {
		return fmt.Errorf("failed to marshal raw regional data: %w", err)
	}

	query := `
		INSERT INTO regional_data (
			unique_request_id, region_code, retrieval_timestamp,
			raw_regional_data, count_available, count_warning,
			count_zombie, count_wounded, count_out_of_service,
			total_atms_in_region)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		snap.UniqueRequestID, snap.RegionCode, snap.DateCreation,
		rawJSON, snap.CountAvailable, snap.CountWarning,
		snap.CountZombie, snap.CountWounded, snap.CountOutOfService,
		snap.TotalATMsInRegion)
	if err != nil {
		return fmt.Errorf("failed to insert regional snapshot: %w", err)
	}
	return nil
}
