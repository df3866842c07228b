// Package manifest serializes the end-of-run report listing every file's
// outcome.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the well-known manifest location under the output root.
const FileName = "processing_manifest.json"

// Status is the terminal state of one processed file.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
	// StatusPending marks work planned but not executed (dry-run).
	StatusPending Status = "pending"
)

// Result records the outcome for a single source file. Immutable once
// appended; exactly one per discovered file, in discovery order.
type Result struct {
	Source      string `json:"src"`
	Destination string `json:"dst"`
	Status      Status `json:"status"`
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Scale       int    `json:"scale"`
	Kind        string `json:"kind"`
	Message     string `json:"message,omitempty"`
}

// Manifest aggregates one run's metadata and its ordered results. Owned by
// the batch driver for the duration of the run; written exactly once at run
// end.
type Manifest struct {
	RunID      string    `json:"run_id"`
	Model      string    `json:"model"`
	Command    string    `json:"command,omitempty"`
	InputRoot  string    `json:"input_root"`
	OutputRoot string    `json:"output_root"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	DryRun     bool      `json:"dry_run"`
	Overwrite  bool      `json:"overwrite"`
	Results    []Result  `json:"results"`
}

// Tally summarizes result statuses.
type Tally struct {
	OK      int
	Skipped int
	Errors  int
	Pending int
}

// Tally counts results by status.
func (m Manifest) Tally() Tally {
	var t Tally
	for _, r := range m.Results {
		switch r.Status {
		case StatusOK:
			t.OK++
		case StatusSkipped:
			t.Skipped++
		case StatusError:
			t.Errors++
		case StatusPending:
			t.Pending++
		}
	}
	return t
}

// Write persists the manifest under outputRoot via temp file + rename so a
// crash never leaves a partially written document. Returns the final path.
func Write(outputRoot string, m Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(outputRoot, FileName)
	tmp, err := os.CreateTemp(outputRoot, FileName+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create manifest temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish manifest: %w", err)
	}
	return path, nil
}
