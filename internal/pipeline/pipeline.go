// Package pipeline wires every component — Archiver, the catalog
// planner, the StageRunner, the chunker, and the summary builder —
// into the single entry point a run goes through end to end (§1, §6).
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pfaudit/pipeline/internal/archiver"
	"github.com/pfaudit/pipeline/internal/artifacts"
	"github.com/pfaudit/pipeline/internal/catalog"
	"github.com/pfaudit/pipeline/internal/chunker"
	"github.com/pfaudit/pipeline/internal/config"
	"github.com/pfaudit/pipeline/internal/dispatch"
	"github.com/pfaudit/pipeline/internal/runlog"
	"github.com/pfaudit/pipeline/internal/runner"
	"github.com/pfaudit/pipeline/internal/status"
	"github.com/pfaudit/pipeline/internal/stopflag"
	"github.com/pfaudit/pipeline/internal/summary"
	"github.com/pfaudit/pipeline/internal/ux"
)

// Run-level exit codes (§6).
const (
	ExitClean         = 0
	ExitHighFindings   = 1
	ExitCriticalFindings = 2
	ExitPhaseFailure  = 3
)

// ExtractionBudgetKB is the soft budget reported (never enforced) for
// the total size of readthis/ chunks.
const ExtractionBudgetKB = 1500

// Run executes one full pipeline invocation: archive the previous
// run, plan the phase catalog, run every stage, chunk the results, and
// build the summary artifacts. It returns the run-level exit code even
// when err is nil; err is reserved for conditions that prevented the
// run from producing any usable artifacts at all.
func Run(ctx context.Context, opts config.Options) (int, error) {
	store := artifacts.New(opts.Root)

	runType := archiver.Full
	if opts.DiffSpec != "" {
		runType = archiver.Diff
	}
	if _, err := archiver.Archive(store, runType, opts.DiffSpec, opts.WipeCache, nil); err != nil {
		return ExitPhaseFailure, fmt.Errorf("archiving previous run: %w", err)
	}

	if err := store.EnsureLayout(); err != nil {
		return ExitPhaseFailure, fmt.Errorf("preparing .pf layout: %w", err)
	}

	limits, err := config.Load(opts.Root)
	if err != nil {
		return ExitPhaseFailure, fmt.Errorf("loading configuration: %w", err)
	}

	log, err := runlog.Open(store.PipelineLogPath())
	if err != nil {
		return ExitPhaseFailure, fmt.Errorf("opening pipeline log: %w", err)
	}
	defer log.Close()

	plan, err := catalog.Plan(opts, limits, nil)
	if err != nil {
		log.Error("pipeline", "planning failed", err)
		return ExitPhaseFailure, fmt.Errorf("planning phases: %w", err)
	}
	for _, reason := range plan.Omitted {
		ux.PhaseOmitted(reason)
	}

	env := &dispatch.Environment{
		ProjectRoot:  opts.Root,
		ArtifactsDir: store.RawDir(),
		Offline:      opts.Offline,
		ExcludeSelf:  opts.ExcludeSelf,
	}
	stop := &stopflag.Flag{}
	go func() {
		<-ctx.Done()
		stop.Set()
	}()

	timing, err := store.LoadTiming()
	if err != nil {
		log.Error("pipeline", "loading timing failed", err)
		return ExitPhaseFailure, fmt.Errorf("loading timing: %w", err)
	}

	runStart := time.Now()
	r := runner.New(store, env, log, stop, timing)
	outcome, err := r.Run(ctx, plan)
	if err != nil {
		log.Error("pipeline", "run failed", err)
		return ExitPhaseFailure, fmt.Errorf("running stages: %w", err)
	}
	elapsed := time.Since(runStart)

	if err := timing.Flush(store); err != nil {
		fmt.Fprintf(ux.StderrWriter(), "warning: failed to flush timing: %v\n", err)
	}
	if err := status.DeleteAll(store.StatusDir()); err != nil {
		log.Error("pipeline", "clearing status files failed", err)
	}

	if _, err := chunker.ExtractAll(store, ExtractionBudgetKB, limits, time.Now()); err != nil {
		log.Error("pipeline", "extraction failed", err)
	}

	auditSummary := summary.Build(store, timing, time.Now())
	if err := summary.Write(store, auditSummary); err != nil {
		log.Error("pipeline", "writing audit summary failed", err)
	}
	if err := summary.WriteAllFiles(store, timing); err != nil {
		log.Error("pipeline", "writing allfiles.md failed", err)
	}

	exitCode := exitCodeFor(outcome)
	status := auditSummary.OverallStatus
	if exitCode == ExitPhaseFailure {
		status = "FAILED"
	}

	log.RunComplete(exitCode, status)
	ux.Success(status, len(outcome.Phases), elapsed)
	return exitCode, nil
}

// exitCodeFor picks the run-level exit code. Critical findings always win,
// even over a phase failure elsewhere in the run — the same priority the
// original full-audit command uses when it overwrites an already-set
// failure code with CRITICAL_SEVERITY once any critical finding exists.
func exitCodeFor(outcome *runner.Outcome) int {
	if outcome.FindingsLevel == 2 {
		return ExitCriticalFindings
	}
	if outcome.AnyFailures() {
		return ExitPhaseFailure
	}
	if outcome.FindingsLevel == 1 {
		return ExitHighFindings
	}
	return ExitClean
}
