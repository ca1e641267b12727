// Package registry keeps the durable set of every terminal ID the
// collector has ever observed, with first-seen timestamps and the
// authoritative location used by failover synthesis. IDs are only
// ever added, never removed.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/clock"
)

// Entry is one known terminal.
type Entry struct {
	TerminalID         string    `json:"terminal_id"`
	Location           string    `json:"location"`
	DiscoveryTimestamp time.Time `json:"discovery_timestamp"`
	Seeded             bool      `json:"seeded"`
}

// Registry is the in-memory view of the registry file.
type Registry struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
	dirty   bool
}

// seedFleet is the fourteen-terminal fleet the registry starts from,
// with the authoritative locations failover snapshots copy.
var seedFleet = []Entry{
	{TerminalID: "8601", Location: "Colmera Branch, Dili"},
	{TerminalID: "8602", Location: "Audian Branch, Dili"},
	{TerminalID: "8603", Location: "Timor Plaza, Comoro"},
	{TerminalID: "8604", Location: "Comoro Branch, Dili"},
	{TerminalID: "8605", Location: "Lecidere, Dili"},
	{TerminalID: "8606", Location: "Bidau Santana, Dili"},
	{TerminalID: "8607", Location: "Fatuhada, Dili"},
	{TerminalID: "8608", Location: "Hudi-Laran, Dili"},
	{TerminalID: "8609", Location: "Bairro Pite, Dili"},
	{TerminalID: "8610", Location: "Becora Market, Dili"},
	{TerminalID: "8611", Location: "Taibesi Market, Dili"},
	{TerminalID: "8612", Location: "Vila Verde, Dili"},
	{TerminalID: "8613", Location: "Mandarin, Dili"},
	{TerminalID: "8614", Location: "Metiaut, Dili"},
}

// fileFormat is the on-disk shape of the registry.
type fileFormat struct {
	UpdatedAt time.Time `json:"updated_at"`
	Terminals []Entry   `json:"terminals"`
}

// Load reads the registry file, seeding the known fleet when the file
// does not exist yet. Seed entries missing from an existing file are
// re-added; nothing is ever dropped.
func Load(path string, clk clock.Clock) (*Registry, error) {
	r := &Registry{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f fileFormat
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("corrupt registry file %s: %w", path, err)
		}
		for _, e := range f.Terminals {
			r.entries[e.TerminalID] = e
		}
	case os.IsNotExist(err):
		r.dirty = true
	default:
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	now := clk.Now()
	for _, seed := range seedFleet {
		if _, ok := r.entries[seed.TerminalID]; !ok {
			seed.DiscoveryTimestamp = now
			seed.Seeded = true
			r.entries[seed.TerminalID] = seed
			r.dirty = true
		}
	}

	log.Info().Str("path", path).Int("terminals", len(r.entries)).
		Msg("Terminal registry loaded")
	return r, nil
}

// Known reports whether a terminal ID has been observed before.
func (r *Registry) Known(terminalID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[terminalID]
	return ok
}

// Location returns the authoritative location for a terminal, empty
// when unknown.
func (r *Registry) Location(terminalID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[terminalID].Location
}

// Add records a newly discovered terminal. It reports whether the ID
// was actually new.
func (r *Registry) Add(terminalID, location string, discovered time.Time) bool {
	if terminalID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[terminalID]; ok {
		return false
	}
	r.entries[terminalID] = Entry{
		TerminalID:         terminalID,
		Location:           location,
		DiscoveryTimestamp: clock.In(discovered),
	}
	r.dirty = true
	log.Info().Str("terminal_id", terminalID).Str("location", location).
		Msg("New terminal discovered")
	return true
}

// IDs returns the known terminal IDs in stable order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns a snapshot of every known terminal, ordered by ID.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TerminalID < entries[j].TerminalID
	})
	return entries
}

// Len returns the number of known terminals.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Save writes the registry atomically (write-temp-then-rename) when it
// changed since the last save. A crash mid-write leaves the previous
// file intact.
func (r *Registry) Save(clk clock.Clock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil
	}

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TerminalID < entries[j].TerminalID
	})

	data, err := json.MarshalIndent(fileFormat{
		UpdatedAt: clk.Now(),
		Terminals: entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create registry temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write registry temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close registry temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}

	r.dirty = false
	log.Debug().Str("path", r.path).Int("terminals", len(entries)).
		Msg("Terminal registry saved")
	return nil
}
