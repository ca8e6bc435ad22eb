// Package archiver relocates a completed run's .pf contents into
// append-only history before the next run starts writing, segregating
// full and diff runs and preserving cache directories by default
// (grounded in the original archive command's run-type segregation
// and cache-preservation rules).
package archiver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/pfaudit/pipeline/internal/artifacts"
)

// RunType selects which history subtree a run's artifacts land under.
type RunType string

const (
	Full RunType = "full"
	Diff RunType = "diff"
)

// Metadata is written as _metadata.json alongside the archived
// artifacts, sealing the run's identity and what happened to it.
type Metadata struct {
	RunType            RunType   `json:"run_type"`
	DiffSpec           string    `json:"diff_spec,omitempty"`
	Timestamp          string    `json:"timestamp"`
	ArchivedAt         time.Time `json:"archived_at"`
	FilesArchived      int       `json:"files_archived"`
	FilesSkipped       int       `json:"files_skipped"`
	CachesPreserved    int       `json:"caches_preserved"`
	WipeCacheRequested bool      `json:"wipe_cache_requested"`
	Destination        string    `json:"destination"`
}

// unsafeDiffSpecChars mirrors the original archiver's replacement list
// for turning a git diff spec like "main..HEAD" into a safe directory
// component.
var unsafeDiffSpecChars = regexp.MustCompile(`\.\.|[/\\: ~^]`)

func sanitizeDiffSpec(spec string) string {
	return unsafeDiffSpecChars.ReplaceAllString(spec, "_")
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Archive moves the previous run's .pf contents into
// .pf/history/{full,diff}/<dirname>/, preserving artifacts.CacheDirs
// unless wipeCache is set. It is a no-op (nil, nil) when .pf does not
// exist or is empty, so a first run on a fresh project never fails
// (§4.1; mirrors the original's "no previous artifacts" shortcut).
func Archive(store *artifacts.Store, runType RunType, diffSpec string, wipeCache bool, clock Clock) (*Metadata, error) {
	if clock == nil {
		clock = time.Now
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", store.Root(), err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	destBase := filepath.Join(store.HistoryDir(), string(runType))
	if err := os.MkdirAll(destBase, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", destBase, err)
	}

	now := clock()
	timestamp := now.Format("20060102_150405")
	dirName := timestamp
	if runType == Diff && diffSpec != "" {
		dirName = fmt.Sprintf("%s_%s", sanitizeDiffSpec(diffSpec), timestamp)
	}

	archiveDest := filepath.Join(destBase, dirName)
	if _, err := os.Stat(archiveDest); err == nil {
		// Two runs landed in the same second; disambiguate rather than
		// merge two runs' artifacts into one history entry.
		archiveDest = fmt.Sprintf("%s_%s", archiveDest, uuid.NewString()[:8])
	}
	if err := os.MkdirAll(archiveDest, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", archiveDest, err)
	}

	cachePreserve := make(map[string]bool, len(artifacts.CacheDirs))
	for _, d := range artifacts.CacheDirs {
		cachePreserve[d] = true
	}

	meta := &Metadata{
		RunType:            runType,
		DiffSpec:           diffSpec,
		Timestamp:          timestamp,
		ArchivedAt:         now,
		WipeCacheRequested: wipeCache,
		Destination:        archiveDest,
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == "history" {
			continue
		}
		if cachePreserve[name] {
			// Cache directories are never archived with the run: left in
			// place when preserved, removed outright when wiped.
			if wipeCache {
				if err := os.RemoveAll(filepath.Join(store.Root(), name)); err != nil {
					fmt.Fprintf(os.Stderr, "warning: could not wipe cache %s: %v\n", name, err)
				}
			} else {
				meta.CachesPreserved++
			}
			continue
		}
		src := filepath.Join(store.Root(), name)
		dst := filepath.Join(archiveDest, name)
		if err := os.Rename(src, dst); err != nil {
			meta.FilesSkipped++
			fmt.Fprintf(os.Stderr, "warning: could not archive %s: %v\n", name, err)
			continue
		}
		meta.FilesArchived++
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return meta, fmt.Errorf("marshaling archive metadata: %w", err)
	}
	metaPath := filepath.Join(archiveDest, "_metadata.json")
	if err := artifacts.WriteFileAtomic(metaPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not write archive metadata: %v\n", err)
	}

	return meta, nil
}
