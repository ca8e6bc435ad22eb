// Package config resolves the runtime options and tunable limits that
// govern a pipeline run: built-in defaults, an optional .pf/config.yaml
// override, and environment variables, merged in ascending priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the well-known prefix for all recognized environment
// variables (PF_TIMEOUT_SECONDS, PF_LIMITS_MAX_CHUNK_SIZE, ...).
const EnvPrefix = "PF"

// Options are the runtime options passed to the pipeline entry point.
type Options struct {
	Root        string
	Quiet       bool
	Offline     bool
	ExcludeSelf bool
	WipeCache   bool
	// DiffSpec, when non-empty, selects a diff run against the named
	// specifier instead of a full run.
	DiffSpec string
}

// Limits holds the tunable sizes and timeouts recognized by the pipeline.
type Limits struct {
	MaxFileSize      int64
	MaxChunkSize     int64
	MaxChunksPerFile int
	DefaultTimeoutS  int
	// PhaseTimeoutS holds per-phase overrides keyed by catalog phase name.
	PhaseTimeoutS map[string]int
	DBBatchSize   int
}

// DefaultLimits returns the built-in defaults before any file or
// environment override is applied.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:      2 * 1024 * 1024,
		MaxChunkSize:     65536,
		MaxChunksPerFile: 20,
		DefaultTimeoutS:  1800,
		PhaseTimeoutS:    map[string]int{},
		DBBatchSize:      500,
	}
}

// fileConfig is the shape of the optional .pf/config.yaml override. It
// generalizes the teacher's phase-list YAML schema to a limits/timeouts
// schema; the phase catalog itself is a static Go table, not user-authored.
type fileConfig struct {
	MaxFileSize      int64          `yaml:"max_file_size"`
	MaxChunkSize     int64          `yaml:"max_chunk_size"`
	MaxChunksPerFile int            `yaml:"max_chunks_per_file"`
	DefaultTimeoutS  int            `yaml:"default_timeout_s"`
	PhaseTimeout     map[string]int `yaml:"phase_timeout"`
	DBBatchSize      int            `yaml:"db_batch_size"`
}

// Load resolves Limits for the given project root: defaults, then
// .pf/config.yaml if present, then environment variables.
func Load(root string) (Limits, error) {
	lim := DefaultLimits()

	path := filepath.Join(root, ".pf", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return lim, fmt.Errorf("reading %s: %w", path, err)
		}
	} else {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return lim, fmt.Errorf("parsing %s: %w", path, err)
		}
		applyFileConfig(&lim, fc)
	}

	applyEnv(&lim, os.Environ())
	return lim, nil
}

func applyFileConfig(lim *Limits, fc fileConfig) {
	if fc.MaxFileSize > 0 {
		lim.MaxFileSize = fc.MaxFileSize
	}
	if fc.MaxChunkSize > 0 {
		lim.MaxChunkSize = fc.MaxChunkSize
	}
	if fc.MaxChunksPerFile > 0 {
		lim.MaxChunksPerFile = fc.MaxChunksPerFile
	}
	if fc.DefaultTimeoutS > 0 {
		lim.DefaultTimeoutS = fc.DefaultTimeoutS
	}
	if fc.DBBatchSize > 0 {
		lim.DBBatchSize = fc.DBBatchSize
	}
	for phase, seconds := range fc.PhaseTimeout {
		lim.PhaseTimeoutS[phase] = seconds
	}
}

func applyEnv(lim *Limits, environ []string) {
	timeoutSuffix := "_TIMEOUT_SECONDS"
	timeoutPrefix := EnvPrefix + "_TIMEOUT_"

	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch key {
		case EnvPrefix + "_TIMEOUT_SECONDS":
			if n, err := strconv.Atoi(val); err == nil {
				lim.DefaultTimeoutS = n
			}
			continue
		case EnvPrefix + "_LIMITS_MAX_FILE_SIZE":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				lim.MaxFileSize = n
			}
			continue
		case EnvPrefix + "_LIMITS_MAX_CHUNK_SIZE":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				lim.MaxChunkSize = n
			}
			continue
		case EnvPrefix + "_DB_BATCH_SIZE":
			if n, err := strconv.Atoi(val); err == nil {
				lim.DBBatchSize = n
			}
			continue
		}

		if strings.HasPrefix(key, timeoutPrefix) && strings.HasSuffix(key, timeoutSuffix) {
			mid := strings.TrimSuffix(strings.TrimPrefix(key, timeoutPrefix), timeoutSuffix)
			if mid == "" {
				continue
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				continue
			}
			phase := strings.ToLower(strings.ReplaceAll(mid, "_", "-"))
			lim.PhaseTimeoutS[phase] = n
		}
	}
}

// PhaseTimeoutSeconds resolves the effective timeout for a phase: its
// per-phase override if set, otherwise the catalog default, and
// DefaultTimeoutS only when the catalog default is zero.
func (l Limits) PhaseTimeoutSeconds(phaseName string, catalogDefault int) int {
	if s, ok := l.PhaseTimeoutS[phaseName]; ok {
		return s
	}
	if catalogDefault > 0 {
		return catalogDefault
	}
	return l.DefaultTimeoutS
}
