// Package artifacts dumps each collection cycle to a timestamped JSON
// file for offline inspection and replay.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banktl/atmwatch/internal/clock"
	"github.com/banktl/atmwatch/internal/models"
)

// Writer writes cycle snapshots under one output directory.
type Writer struct {
	dir string
	clk clock.Clock
}

// NewWriter ensures the output directory exists and returns a writer.
func NewWriter(dir string, clk clock.Clock) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &Writer{dir: dir, clk: clk}, nil
}

// WriteCycle writes one snapshot as indented JSON and returns the file
// path. Files are named by Dili-time timestamp plus the cycle ID so a
// directory listing sorts chronologically.
func (w *Writer) WriteCycle(snap models.CycleSnapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal cycle snapshot: %w", err)
	}

	name := fmt.Sprintf("cycle_%s_%s.json",
		clock.In(w.clk.Now()).Format("20060102_150405"), snap.CycleID)
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write cycle artifact: %w", err)
	}
	return path, nil
}
