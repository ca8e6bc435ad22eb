// Package runner drives the StageRunner: Foundation and DataPrep run
// sequentially, the Parallel stage fans out to three track workers
// behind a hard barrier, and Final runs sequentially once every track
// has returned (§4, §4.3).
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pfaudit/pipeline/internal/artifacts"
	"github.com/pfaudit/pipeline/internal/catalog"
	"github.com/pfaudit/pipeline/internal/dispatch"
	"github.com/pfaudit/pipeline/internal/runlog"
	"github.com/pfaudit/pipeline/internal/status"
	"github.com/pfaudit/pipeline/internal/stopflag"
	"github.com/pfaudit/pipeline/internal/ux"
)

// RunPhaseFunc matches dispatch.RunPhase's signature; tests substitute
// a fake so runner logic can be exercised without real subprocesses.
type RunPhaseFunc func(ctx context.Context, phase catalog.ResolvedPhase, env *dispatch.Environment, tmpDir string, stop *stopflag.Flag) (*dispatch.Result, error)

// Runner executes a resolved catalog.Plan against a project root.
type Runner struct {
	Store    *artifacts.Store
	Env      *dispatch.Environment
	Log      *runlog.Logger
	Stop     *stopflag.Flag
	Timing   *artifacts.Timing
	RunPhase RunPhaseFunc
}

// New builds a Runner wired to the real subprocess dispatcher.
func New(store *artifacts.Store, env *dispatch.Environment, log *runlog.Logger, stop *stopflag.Flag, timing *artifacts.Timing) *Runner {
	return &Runner{
		Store:    store,
		Env:      env,
		Log:      log,
		Stop:     stop,
		Timing:   timing,
		RunPhase: dispatch.RunPhase,
	}
}

// PhaseOutcome is what a single phase contributed to the run.
type PhaseOutcome struct {
	Name     string
	Success  bool
	ExitCode int
}

// Outcome summarizes the whole run for the exit-code decision in §6.
type Outcome struct {
	FindingsLevel int // highest of 0 (clean), 1 (high), 2 (critical)
	FailedPhases  []string
	Phases        []PhaseOutcome
}

// AnyFailures reports whether at least one phase failed outright
// (distinct from a findings-bearing nonzero exit, which is success).
func (o *Outcome) AnyFailures() bool {
	return len(o.FailedPhases) > 0
}

// trackResult is a single track's private accumulator; merged into the
// shared Outcome only after the barrier, so no locking is needed while
// the three tracks run concurrently.
type trackResult struct {
	findingsLevel int
	failedPhases  []string
	phases        []PhaseOutcome
}

// Run executes every stage of plan in order, fanning the Parallel
// stage out across three track goroutines with a hard barrier before
// Final (§4.3: "no phase in Final starts until every track worker has
// returned"). A failure inside Foundation or DataPrep aborts the run
// immediately — neither stage's remaining phases run, and Parallel and
// Final are skipped entirely (§4.3 rule 5, §7). Failures inside
// Parallel are accumulated instead: every track still runs to
// completion and Final still follows.
func (r *Runner) Run(ctx context.Context, plan *catalog.Plan) (*Outcome, error) {
	outcome := &Outcome{}

	ux.StageHeader("Foundation")
	r.Log.StageBarrier("foundation")
	foundation := r.runSequential(ctx, "foundation", "", plan.Foundation, true)
	merge(outcome, foundation)
	if len(foundation.failedPhases) > 0 {
		r.Log.Error("runner", "foundation stage failed, aborting run", fmt.Errorf("failed phases: %v", foundation.failedPhases))
		return outcome, nil
	}

	ux.StageHeader("Data Preparation")
	r.Log.StageBarrier("dataprep")
	dataprep := r.runSequential(ctx, "dataprep", "", plan.DataPrep, true)
	merge(outcome, dataprep)
	if len(dataprep.failedPhases) > 0 {
		r.Log.Error("runner", "data preparation stage failed, aborting run", fmt.Errorf("failed phases: %v", dataprep.failedPhases))
		return outcome, nil
	}

	ux.StageHeader("Parallel Analysis")
	r.Log.StageBarrier("parallel")
	merge(outcome, r.runParallel(ctx, plan))

	ux.StageBarrier()
	ux.StageHeader("Final")
	r.Log.StageBarrier("final")
	merge(outcome, r.runSequential(ctx, "final", "", plan.Final, false))

	return outcome, nil
}

// runParallel runs TrackA, TrackB, and TrackC concurrently, each
// reporting its own status file, and waits for all three before
// returning (the hard barrier).
func (r *Runner) runParallel(ctx context.Context, plan *catalog.Plan) trackResult {
	tracks := []struct {
		label  string
		phases []catalog.ResolvedPhase
	}{
		{catalog.TrackA.String(), plan.TrackA},
		{catalog.TrackB.String(), plan.TrackB},
		{catalog.TrackC.String(), plan.TrackC},
	}

	results := make([]trackResult, len(tracks))
	var wg sync.WaitGroup
	wg.Add(len(tracks))
	for i, t := range tracks {
		i, t := i, t
		go func() {
			defer wg.Done()
			results[i] = r.runSequential(ctx, "parallel", t.label, t.phases, false)
		}()
	}
	wg.Wait()

	var combined trackResult
	for _, tr := range results {
		combined.phases = append(combined.phases, tr.phases...)
		combined.failedPhases = append(combined.failedPhases, tr.failedPhases...)
		if tr.findingsLevel > combined.findingsLevel {
			combined.findingsLevel = tr.findingsLevel
		}
	}
	return combined
}

// runSequential runs phases in declaration order within a single
// track (or a non-parallel stage, where track is ""). When
// abortOnFailure is false — the Parallel and Final stages — a phase
// that fails does not stop its siblings: the pipeline keeps collecting
// whatever facts it still can, and reports the failure in the final
// exit code (§6). When abortOnFailure is true — Foundation and
// DataPrep — the loop stops at the first failing phase, since later
// phases and stages assume those two completed cleanly (§4.3 rule 5).
func (r *Runner) runSequential(ctx context.Context, stage, track string, phases []catalog.ResolvedPhase, abortOnFailure bool) trackResult {
	var result trackResult
	if len(phases) == 0 {
		return result
	}

	var reporter *status.Reporter
	if track != "" {
		reporter = status.New(r.Store.StatusDir(), track, len(phases))
	}

	for i, phase := range phases {
		if r.Stop.IsSet() || ctx.Err() != nil {
			ux.PhaseOmitted(fmt.Sprintf("%s: skipped (run stopping)", phase.Name))
			result.failedPhases = append(result.failedPhases, phase.Name)
			if reporter != nil {
				_ = reporter.MarkInterrupted(phase.Name, i)
			}
			continue
		}

		ux.PhaseStart(track, phase.Name, phase.Description)
		r.Log.PhaseStart(stage, track, phase.Name, phase.Args)
		r.Timing.AddStart(phase.Name)
		if reporter != nil {
			_ = reporter.Update(phase.Name, i)
		}

		start := time.Now()
		res, err := r.RunPhase(ctx, phase, r.Env, r.Store.TmpDir(), r.Stop)
		elapsed := time.Since(start)
		r.Timing.AddEnd(phase.Name)

		if err != nil {
			r.Log.Error("runner", fmt.Sprintf("phase %q did not start", phase.Name), err)
			ux.PhaseFail(track, phase.Name, err.Error())
			result.failedPhases = append(result.failedPhases, phase.Name)
			result.phases = append(result.phases, PhaseOutcome{Name: phase.Name, Success: false})
			if abortOnFailure {
				break
			}
			continue
		}

		r.Log.PhaseExit(phase.Name, res.ExitCode, res.Success, elapsed.String())
		if res.Stdout != "" {
			r.Log.PhaseOutputTail(phase.Name, "stdout", res.Stdout)
		}
		if res.Stderr != "" {
			r.Log.PhaseOutputTail(phase.Name, "stderr", res.Stderr)
		}

		result.phases = append(result.phases, PhaseOutcome{Name: phase.Name, Success: res.Success, ExitCode: res.ExitCode})

		failed := false
		switch {
		case res.TimedOut:
			r.Log.PhaseTimeout(phase.Name, phase.Timeout.String())
			ux.PhaseFail(track, phase.Name, fmt.Sprintf("timed out after %s", phase.Timeout))
			result.failedPhases = append(result.failedPhases, phase.Name)
			failed = true
		case res.Interrupted:
			r.Log.Interrupt(phase.Name)
			ux.Interrupted()
			result.failedPhases = append(result.failedPhases, phase.Name)
			failed = true
		case !res.Success:
			ux.PhaseFail(track, phase.Name, fmt.Sprintf("exit %d", res.ExitCode))
			result.failedPhases = append(result.failedPhases, phase.Name)
			failed = true
		case phase.TreatsNonzeroAsFindings && res.ExitCode != 0:
			if res.ExitCode > result.findingsLevel {
				result.findingsLevel = res.ExitCode
			}
			ux.PhaseFindings(track, phase.Name, res.ExitCode, elapsed)
		default:
			ux.PhaseComplete(track, phase.Name, elapsed)
		}

		if failed && abortOnFailure {
			break
		}
	}

	if reporter != nil {
		_ = reporter.Delete()
	}
	return result
}

func merge(outcome *Outcome, tr trackResult) {
	outcome.Phases = append(outcome.Phases, tr.phases...)
	outcome.FailedPhases = append(outcome.FailedPhases, tr.failedPhases...)
	if tr.findingsLevel > outcome.FindingsLevel {
		outcome.FindingsLevel = tr.findingsLevel
	}
}
