package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/banktl/atmwatch/internal/config"
	"github.com/banktl/atmwatch/internal/persistence"
)

// Manager owns the database handle and the stream repositories. The
// collector opens it once per process; individual stream writes still
// run in their own transactions.
type Manager struct {
	db    *sqlx.DB
	repos *persistence.Repository
}

// NewManager opens the database and wires the four stream repos.
func NewManager(cfg config.DatabaseConfig) (*Manager, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Manager{
		db: db,
		repos: &persistence.Repository{
			Regional: NewRegionalRepo(db, cfg.QueryTimeout),
			Terminal: NewTerminalRepo(db, cfg.QueryTimeout),
			Cash:     NewCashRepo(db, cfg.QueryTimeout),
			Legacy:   NewLegacyRepo(db, cfg.QueryTimeout),
		},
	}, nil
}

// Repository returns the stream repositories.
func (m *Manager) Repository() *persistence.Repository {
	return m.repos
}

// Close releases the database handle.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
