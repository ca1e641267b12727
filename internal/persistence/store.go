package persistence

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/models"
)

// Stream names, also used as metric labels.
const (
	StreamRegional = "regional"
	StreamTerminal = "terminal_details"
	StreamCash     = "cash"
	StreamLegacy   = "regional_atm_counts"
)

// Options selects which write paths a cycle takes.
type Options struct {
	UseNewTables bool
	LegacyTables bool
}

// StreamResult reports one stream's write outcome.
type StreamResult struct {
	Stream string `json:"stream"`
	Rows   int    `json:"rows"`
	Err    error  `json:"-"`
}

// Store writes one cycle's output across the independent streams.
// There is no transaction spanning streams: a failure in one stream is
// logged and the remaining streams are still attempted.
type Store struct {
	repos *Repository
	opts  Options
}

// NewStore wires the stream repositories.
func NewStore(repos *Repository, opts Options) *Store {
	return &Store{repos: repos, opts: opts}
}

// PersistCycle writes regional rows, then terminal detail rows, then
// cash rows (order is convenience, not correctness). It returns every
// stream's outcome and an error only when all attempted streams
// failed.
func (s *Store) PersistCycle(ctx context.Context, snap models.CycleSnapshot) ([]StreamResult, error) {
	var results []StreamResult

	if snap.Regional != nil {
		if s.opts.UseNewTables {
			results = append(results, s.writeStream(ctx, StreamRegional, 1, func() error {
				if err := s.repos.Regional.EnsureSchema(ctx); err != nil {
					return err
				}
				return s.repos.Regional.Insert(ctx, *snap.Regional)
			}))
		}
		if s.opts.LegacyTables {
			results = append(results, s.writeStream(ctx, StreamLegacy, 1, func() error {
				if err := s.repos.Legacy.EnsureSchema(ctx); err != nil {
					return err
				}
				return s.repos.Legacy.Insert(ctx, *snap.Regional)
			}))
		}
	}

	if len(snap.Terminals) > 0 {
		results = append(results, s.writeStream(ctx, StreamTerminal, len(snap.Terminals), func() error {
			if err := s.repos.Terminal.EnsureSchema(ctx); err != nil {
				return err
			}
			return s.repos.Terminal.InsertBatch(ctx, snap.Terminals)
		}))
	}

	if len(snap.Cash) > 0 {
		results = append(results, s.writeStream(ctx, StreamCash, len(snap.Cash), func() error {
			if err := s.repos.Cash.EnsureSchema(ctx); err != nil {
				return err
			}
			return s.repos.Cash.InsertBatch(ctx, snap.Cash)
		}))
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if len(results) > 0 && failed == len(results) {
		return results, fmt.Errorf("all %d persistence streams failed", failed)
	}
	return results, nil
}

func (s *Store) writeStream(ctx context.Context, stream string, rows int, write func() error) StreamResult {
	if err := write(); err != nil {
		log.Error().Err(err).Str("stream", stream).
			Msg("Persistence stream failed, continuing with remaining streams")
		return StreamResult{Stream: stream, Err: err}
	}
	log.Info().Str("stream", stream).Int("rows", rows).Msg("Stream persisted")
	return StreamResult{Stream: stream, Rows: rows}
}
