package catalog

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/pfaudit/pipeline/internal/config"
)

// ResolvedPhase is a catalog Entry with its argument vector finalized
// (exclude-self injected where accepted) and its timeout resolved
// against configuration overrides.
type ResolvedPhase struct {
	Entry
	Args    []string
	Timeout time.Duration
}

// Plan is the fully resolved execution plan: phases bucketed into their
// stage, with the Parallel stage further split into its three tracks.
type Plan struct {
	Foundation []ResolvedPhase
	DataPrep   []ResolvedPhase
	TrackA     []ResolvedPhase
	TrackB     []ResolvedPhase
	TrackC     []ResolvedPhase
	Final      []ResolvedPhase
	// Omitted lists phases dropped from the plan (binary not found on
	// PATH, or a network phase skipped in offline mode), each with the
	// reason it was dropped.
	Omitted []string
}

// LookPath abstracts binary resolution so tests can substitute a fake.
type LookPath func(binary string) (string, error)

// Plan resolves the static catalog into an executable plan for the given
// options and limits. Missing binaries are logged via omitted and
// dropped; the pipeline does not attempt to re-add or reorder around a
// gap (§4.2).
func Plan(opts config.Options, lim config.Limits, lookPath LookPath) (*Plan, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	plan := &Plan{}
	for _, entry := range Phases {
		if entry.RequiresNetwork && opts.Offline {
			plan.Omitted = append(plan.Omitted, fmt.Sprintf("%s: skipped (offline mode)", entry.Name))
			continue
		}

		if _, err := lookPath(entry.Binary); err != nil {
			plan.Omitted = append(plan.Omitted, fmt.Sprintf("%s: binary %q not found on PATH", entry.Name, entry.Binary))
			continue
		}

		resolved := ResolvedPhase{
			Entry:   entry,
			Args:    buildArgs(entry, opts),
			Timeout: time.Duration(lim.PhaseTimeoutSeconds(entry.Name, entry.DefaultTimeoutSeconds)) * time.Second,
		}

		switch entry.Stage {
		case Foundation:
			plan.Foundation = append(plan.Foundation, resolved)
		case DataPrep:
			plan.DataPrep = append(plan.DataPrep, resolved)
		case Final:
			plan.Final = append(plan.Final, resolved)
		case Parallel:
			switch entry.Track {
			case TrackA:
				plan.TrackA = append(plan.TrackA, resolved)
			case TrackB:
				plan.TrackB = append(plan.TrackB, resolved)
			case TrackC:
				plan.TrackC = append(plan.TrackC, resolved)
			default:
				return nil, fmt.Errorf("catalog entry %q: Parallel stage requires a track", entry.Name)
			}
		}
	}
	return plan, nil
}

func buildArgs(entry Entry, opts config.Options) []string {
	args := make([]string, len(entry.Args), len(entry.Args)+1)
	copy(args, entry.Args)
	if entry.AcceptsExcludeSelf && opts.ExcludeSelf {
		args = append(args, "--exclude-self")
	}
	return args
}

// Total returns the number of phases actually planned (excluding omitted).
func (p *Plan) Total() int {
	return len(p.Foundation) + len(p.DataPrep) + len(p.TrackA) + len(p.TrackB) + len(p.TrackC) + len(p.Final)
}
