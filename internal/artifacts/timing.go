package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimingEntry records one phase's start/end for allfiles.md and
// audit_summary.json duration reporting.
type TimingEntry struct {
	Phase    string    `json:"phase"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration string    `json:"duration,omitempty"`
}

// Timing accumulates phase timing entries for a single run.
type Timing struct {
	mu      sync.Mutex
	Entries []TimingEntry `json:"entries"`
}

func (s *Store) timingPath() string {
	return filepath.Join(s.root, "timing.json")
}

// LoadTiming reads timing data for the current run, or an empty Timing
// if none has been recorded yet.
func (s *Store) LoadTiming() (*Timing, error) {
	data, err := os.ReadFile(s.timingPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Timing{}, nil
		}
		return nil, err
	}
	var t Timing
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// AddStart records the start of a phase.
func (t *Timing) AddStart(phaseName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Entries = append(t.Entries, TimingEntry{Phase: phaseName, Start: time.Now()})
}

// AddEnd records the completion of the most recent still-open entry for
// phaseName.
func (t *Timing) AddEnd(phaseName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if t.Entries[i].Phase == phaseName && t.Entries[i].End.IsZero() {
			t.Entries[i].End = time.Now()
			t.Entries[i].Duration = formatDuration(t.Entries[i].End.Sub(t.Entries[i].Start))
			break
		}
	}
}

// Flush persists the timing data for the given store.
func (t *Timing) Flush(s *Store) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.timingPath(), data, 0644)
}

func formatDuration(d time.Duration) string {
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
