// Package dispatch runs a single catalog phase as an external
// subprocess: building its environment, capturing its output streams,
// and classifying its exit code (§4.3).
package dispatch

import (
	"fmt"
	"os"
)

// Environment holds the execution context shared across every phase
// dispatched during a run.
type Environment struct {
	ProjectRoot  string
	ArtifactsDir string // .pf/raw
	Offline      bool
	ExcludeSelf  bool

	filteredEnv []string // lazily snapshotted base os.Environ()
}

// Clone returns a deep copy safe to mutate per-dispatch (e.g. to stamp a
// phase name) without racing concurrent track goroutines.
func (e *Environment) Clone() *Environment {
	cp := *e
	if e.filteredEnv != nil {
		cp.filteredEnv = make([]string, len(e.filteredEnv))
		copy(cp.filteredEnv, e.filteredEnv)
	}
	return &cp
}

// BuildEnv returns the environment variables passed to a phase's
// subprocess: the inherited environment plus the PF_ variables the
// phase contract promises (§6: "an environment that includes an
// encoding hint and optional isolation markers").
func BuildEnv(env *Environment, phaseName string) []string {
	if env.filteredEnv == nil {
		env.filteredEnv = os.Environ()
	}
	result := make([]string, len(env.filteredEnv), len(env.filteredEnv)+6)
	copy(result, env.filteredEnv)
	result = append(result,
		"PF_PROJECT_ROOT="+env.ProjectRoot,
		"PF_ARTIFACTS_DIR="+env.ArtifactsDir,
		"PF_PHASE="+phaseName,
		"PF_ENCODING=utf-8",
		fmt.Sprintf("PF_OFFLINE=%t", env.Offline),
		fmt.Sprintf("PF_EXCLUDE_SELF=%t", env.ExcludeSelf),
	)
	return result
}
