// Package status implements the ephemeral, last-writer-wins per-track
// progress files under .pf/status/ (§4.7). Status is advisory only and
// never coordinates behavior: the files are read back by the `pf status`
// command; the runner writes them but does not poll them itself.
package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Record is the JSON document written to .pf/status/<track>.status.
type Record struct {
	Track     string    `json:"track"`
	Current   string    `json:"current"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
	ElapsedS  float64   `json:"elapsed"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeName turns a track label such as "Track A (Taint Analysis)"
// into a filesystem-safe, lowercase token by replacing every run of
// characters outside [A-Za-z0-9_-] with a single underscore. This
// resolves the open question in §9 about status-file sanitization: the
// Archiver's own sanitizer (§4.1) replaces a fixed character set; this
// sanitizer instead replaces by character class, since track labels
// contain parentheses and spaces the Archiver's rule does not enumerate.
func SanitizeName(name string) string {
	return strings.ToLower(unsafeChars.ReplaceAllString(name, "_"))
}

// Reporter writes one track's status file.
type Reporter struct {
	dir       string
	track     string
	file      string
	total     int
	start     time.Time
}

// New returns a Reporter for the given track, writing under statusDir.
func New(statusDir, track string, total int) *Reporter {
	return &Reporter{
		dir:   statusDir,
		track: track,
		file:  filepath.Join(statusDir, SanitizeName(track)+".status"),
		total: total,
		start: time.Now(),
	}
}

// Update overwrites this track's status file. Writes are unsynchronized
// last-writer-wins per §4.7: a plain truncate-and-rewrite, not an atomic
// rename, since the content is advisory and a torn read is harmless (the
// next poll simply sees the previous or next complete record).
func (r *Reporter) Update(current string, completed int) error {
	rec := Record{
		Track:     r.track,
		Current:   current,
		Completed: completed,
		Total:     r.total,
		Timestamp: time.Now(),
		ElapsedS:  time.Since(r.start).Seconds(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(r.file, data, 0644)
}

// MarkInterrupted overwrites the status file with a terminal
// "INTERRUPTED" record (Scenario E).
func (r *Reporter) MarkInterrupted(current string, completed int) error {
	rec := Record{
		Track:     r.track,
		Current:   "INTERRUPTED: " + current,
		Completed: completed,
		Total:     r.total,
		Timestamp: time.Now(),
		ElapsedS:  time.Since(r.start).Seconds(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(r.file, data, 0644)
}

// Delete removes this track's status file at run end.
func (r *Reporter) Delete() error {
	err := os.Remove(r.file)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Read reads back a track's current status record, for the on-demand
// `pf status` display.
func Read(statusDir, track string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(statusDir, SanitizeName(track)+".status"))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteAll removes every status file at run end (§4.7: "Status files
// are deleted at the end of the run").
func DeleteAll(statusDir string) error {
	entries, err := os.ReadDir(statusDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".status") {
			if err := os.Remove(filepath.Join(statusDir, e.Name())); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}
