// Package artifacts owns .pf/raw, the single source of truth for facts
// a run produces, and enforces the filesystem layout the rest of the
// pipeline depends on.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store owns the filesystem layout under <root>/.pf/.
type Store struct {
	root string
}

// New returns a Store rooted at <root>/.pf.
func New(root string) *Store {
	return &Store{root: filepath.Join(root, ".pf")}
}

func (s *Store) Root() string            { return s.root }
func (s *Store) RawDir() string          { return filepath.Join(s.root, "raw") }
func (s *Store) ReadThisDir() string     { return filepath.Join(s.root, "readthis") }
func (s *Store) StatusDir() string       { return filepath.Join(s.root, "status") }
func (s *Store) HistoryDir() string      { return filepath.Join(s.root, "history") }
func (s *Store) TmpDir() string          { return filepath.Join(s.root, ".tmp") }
func (s *Store) PipelineLogPath() string { return filepath.Join(s.root, "pipeline.log") }
func (s *Store) AllFilesPath() string    { return filepath.Join(s.root, "allfiles.md") }
func (s *Store) AuditSummaryPath() string {
	return filepath.Join(s.RawDir(), "audit_summary.json")
}
func (s *Store) ExtractionSummaryPath() string {
	return filepath.Join(s.ReadThisDir(), "extraction_summary.json")
}

// CacheDirs is the fixed set of subdirectories preserved across runs by
// the Archiver unless a cache wipe is requested (§9 open question:
// resolved as not configurable).
var CacheDirs = []string{".cache", "context", "ml"}

// EnsureLayout creates the directories the pipeline owns before any
// phase starts. Failure to create raw/ aborts the whole run per §4.4.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.RawDir(), s.ReadThisDir(), s.StatusDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// ListRawArtifacts returns the names of regular files directly under
// raw/, in directory order.
func (s *Store) ListRawArtifacts() ([]string, error) {
	entries, err := os.ReadDir(s.RawDir())
	if err != nil {
		return nil, fmt.Errorf("reading raw dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListReadThisArtifacts returns the names of regular files directly
// under readthis/, in directory order.
func (s *Store) ListReadThisArtifacts() ([]string, error) {
	entries, err := os.ReadDir(s.ReadThisDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading readthis dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ReadThisArtifactSize stats a readthis/ file without reading its
// contents.
func (s *Store) ReadThisArtifactSize(name string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.ReadThisDir(), name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadRawArtifact reads the bytes of a named artifact from raw/.
func (s *Store) ReadRawArtifact(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.RawDir(), name))
}

// WriteRawArtifact writes bytes to raw/ atomically. The pipeline core
// itself only ever writes audit_summary.json and report-adjacent facts
// here; individual analysis phases write the rest directly as external
// subprocesses.
func (s *Store) WriteRawArtifact(name string, data []byte) error {
	return WriteFileAtomic(filepath.Join(s.RawDir(), name), data, 0644)
}

// ArtifactSize stats a raw artifact without reading its contents.
func (s *Store) ArtifactSize(name string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.RawDir(), name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
