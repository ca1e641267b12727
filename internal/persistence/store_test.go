package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banktl/atmwatch/internal/models"
)

// fakeRepo serves all four stream interfaces with scripted failures.
type fakeRepo struct {
	schemaCalls int
	writes      int
	schemaErr   error
	writeErr    error
}

func (f *fakeRepo) EnsureSchema(context.Context) error {
	f.schemaCalls++
	return f.schemaErr
}

func (f *fakeRepo) Insert(context.Context, models.RegionalSnapshot) error {
	f.writes++
	return f.writeErr
}

func (f *fakeRepo) InsertBatch(ctx context.Context, _ []models.TerminalStatusRecord) error {
	f.writes++
	return f.writeErr
}

type fakeCashRepo struct{ fakeRepo }

func (f *fakeCashRepo) InsertBatch(context.Context, []models.CashRecord) error {
	f.writes++
	return f.writeErr
}

func fullSnapshot() models.CycleSnapshot {
	return models.CycleSnapshot{
		CycleID:  "cycle-1",
		Regional: &models.RegionalSnapshot{RegionCode: "TL-DL"},
		Terminals: []models.TerminalStatusRecord{
			{TerminalID: "8601"}, {TerminalID: "8602"},
		},
		Cash: []models.CashRecord{{TerminalID: "8601"}},
	}
}

func newFakes() (*fakeRepo, *fakeRepo, *fakeCashRepo, *fakeRepo, *Repository) {
	regional := &fakeRepo{}
	terminal := &fakeRepo{}
	cash := &fakeCashRepo{}
	legacy := &fakeRepo{}
	return regional, terminal, cash, legacy, &Repository{
		Regional: regional,
		Terminal: terminal,
		Cash:     cash,
		Legacy:   legacy,
	}
}

func TestPersistCycle_AllStreams(t *testing.T) {
	regional, terminal, cash, legacy, repos := newFakes()
	store := NewStore(repos, Options{UseNewTables: true, LegacyTables: true})

	results, err := store.PersistCycle(context.Background(), fullSnapshot())
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, 1, regional.writes)
	assert.Equal(t, 1, legacy.writes)
	assert.Equal(t, 1, terminal.writes)
	assert.Equal(t, 1, cash.writes)

	// Schema is ensured before every stream write.
	assert.Equal(t, 1, regional.schemaCalls)
	assert.Equal(t, 1, terminal.schemaCalls)
}

func TestPersistCycle_OneStreamFailureDoesNotStopOthers(t *testing.T) {
	regional, terminal, cash, _, repos := newFakes()
	regional.writeErr = errors.New("regional_data insert failed")
	store := NewStore(repos, Options{UseNewTables: true})

	results, err := store.PersistCycle(context.Background(), fullSnapshot())
	require.NoError(t, err, "partial failure is not a cycle failure")

	var failed, ok int
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.Equal(t, StreamRegional, r.Stream)
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, terminal.writes)
	assert.Equal(t, 1, cash.writes)
}

func TestPersistCycle_AllStreamsFailing(t *testing.T) {
	regional, terminal, cash, _, repos := newFakes()
	boom := errors.New("database gone")
	regional.writeErr = boom
	terminal.writeErr = boom
	cash.writeErr = boom
	store := NewStore(repos, Options{UseNewTables: true})

	_, err := store.PersistCycle(context.Background(), fullSnapshot())
	assert.Error(t, err)
}

func TestPersistCycle_SchemaFailureFailsStream(t *testing.T) {
	regional, terminal, _, _, repos := newFakes()
	terminal.schemaErr = errors.New("permission denied")
	store := NewStore(repos, Options{UseNewTables: true})

	results, err := store.PersistCycle(context.Background(), fullSnapshot())
	require.NoError(t, err)

	for _, r := range results {
		if r.Stream == StreamTerminal {
			assert.Error(t, r.Err)
		}
	}
	assert.Zero(t, terminal.writes, "schema failure must skip the write")
	assert.Equal(t, 1, regional.writes)
}

func TestPersistCycle_LegacyTablesOptional(t *testing.T) {
	_, _, _, legacy, repos := newFakes()
	store := NewStore(repos, Options{UseNewTables: true})

	_, err := store.PersistCycle(context.Background(), fullSnapshot())
	require.NoError(t, err)
	assert.Zero(t, legacy.writes)
}

func TestPersistCycle_SkipsAbsentData(t *testing.T) {
	regional, terminal, cash, _, repos := newFakes()
	store := NewStore(repos, Options{UseNewTables: true})

	snap := models.CycleSnapshot{CycleID: "cycle-empty"}
	results, err := store.PersistCycle(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, regional.writes)
	assert.Zero(t, terminal.writes)
	assert.Zero(t, cash.writes)
}
