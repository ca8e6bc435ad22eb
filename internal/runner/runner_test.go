package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pfaudit/pipeline/internal/artifacts"
	"github.com/pfaudit/pipeline/internal/catalog"
	"github.com/pfaudit/pipeline/internal/dispatch"
	"github.com/pfaudit/pipeline/internal/runlog"
	"github.com/pfaudit/pipeline/internal/stopflag"
)

func newTestRunner(t *testing.T, fake RunPhaseFunc) *Runner {
	t.Helper()
	root := t.TempDir()
	store := artifacts.New(root)
	if err := store.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	log, err := runlog.Open(filepath.Join(store.Root(), "pipeline.log"))
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	timing, err := store.LoadTiming()
	if err != nil {
		t.Fatalf("LoadTiming: %v", err)
	}

	return &Runner{
		Store:    store,
		Env:      &dispatch.Environment{ProjectRoot: root, ArtifactsDir: store.RawDir()},
		Log:      log,
		Stop:     &stopflag.Flag{},
		Timing:   timing,
		RunPhase: fake,
	}
}

func fakeSuccess(ctx context.Context, phase catalog.ResolvedPhase, env *dispatch.Environment, tmpDir string, stop *stopflag.Flag) (*dispatch.Result, error) {
	return &dispatch.Result{ExitCode: 0, Success: true, Elapsed: time.Millisecond}, nil
}

func TestRun_AllSequentialStagesSucceed(t *testing.T) {
	r := newTestRunner(t, fakeSuccess)
	plan := &catalog.Plan{
		Foundation: []catalog.ResolvedPhase{{Entry: catalog.Entry{Name: "index"}}},
		Final:      []catalog.ResolvedPhase{{Entry: catalog.Entry{Name: "report"}}},
	}
	outcome, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.AnyFailures() {
		t.Errorf("expected no failures, got %v", outcome.FailedPhases)
	}
	if len(outcome.Phases) != 2 {
		t.Errorf("expected 2 phase outcomes, got %d", len(outcome.Phases))
	}
}

func TestRun_ParallelTracksRunConcurrently(t *testing.T) {
	r := newTestRunner(t, func(ctx context.Context, phase catalog.ResolvedPhase, env *dispatch.Environment, tmpDir string, stop *stopflag.Flag) (*dispatch.Result, error) {
		time.Sleep(20 * time.Millisecond)
		return &dispatch.Result{ExitCode: 0, Success: true}, nil
	})
	plan := &catalog.Plan{
		TrackA: []catalog.ResolvedPhase{{Entry: catalog.Entry{Name: "taint-analyze"}}},
		TrackB: []catalog.ResolvedPhase{{Entry: catalog.Entry{Name: "lint"}}},
		TrackC: []catalog.ResolvedPhase{{Entry: catalog.Entry{Name: "deps"}}},
	}
	start := time.Now()
	outcome, err := r.Run(context.Background(), plan)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed > 60*time.Millisecond {
		t.Errorf("expected tracks to run concurrently, took %v", elapsed)
	}
	if len(outcome.Phases) != 3 {
		t.Errorf("expected 3 phase outcomes, got %d", len(outcome.Phases))
	}
}

func TestRun_FindingsBearingPhaseRaisesLevel(t *testing.T) {
	r := newTestRunner(t, func(ctx context.Context, phase catalog.ResolvedPhase, env *dispatch.Environment, tmpDir string, stop *stopflag.Flag) (*dispatch.Result, error) {
		return &dispatch.Result{ExitCode: 2, Success: true}, nil
	})
	plan := &catalog.Plan{
		TrackA: []catalog.ResolvedPhase{{Entry: catalog.Entry{Name: "taint-analyze", TreatsNonzeroAsFindings: true}}},
	}
	outcome, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.FindingsLevel != 2 {
		t.Errorf("expected findings level 2, got %d", outcome.FindingsLevel)
	}
	if outcome.AnyFailures() {
		t.Errorf("findings-bearing nonzero exit must not count as a failure")
	}
}

func TestRun_DataPrepFailureAbortsRun(t *testing.T) {
	r := newTestRunner(t, func(ctx context.Context, phase catalog.ResolvedPhase, env *dispatch.Environment, tmpDir string, stop *stopflag.Flag) (*dispatch.Result, error) {
		if phase.Name == "lint" {
			return &dispatch.Result{ExitCode: 1, Success: false}, nil
		}
		return &dispatch.Result{ExitCode: 0, Success: true}, nil
	})
	plan := &catalog.Plan{
		DataPrep: []catalog.ResolvedPhase{
			{Entry: catalog.Entry{Name: "lint"}},
			{Entry: catalog.Entry{Name: "churn"}},
		},
		Final: []catalog.ResolvedPhase{
			{Entry: catalog.Entry{Name: "report"}},
		},
	}
	outcome, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcome.FailedPhases) != 1 || outcome.FailedPhases[0] != "lint" {
		t.Errorf("expected only lint to fail, got %v", outcome.FailedPhases)
	}
	if len(outcome.Phases) != 1 {
		t.Errorf("expected churn and Final to be skipped after lint failed in DataPrep, got %d phase outcomes", len(outcome.Phases))
	}
}

func TestRun_ParallelFailureDoesNotAbortSiblingsOrFinal(t *testing.T) {
	r := newTestRunner(t, func(ctx context.Context, phase catalog.ResolvedPhase, env *dispatch.Environment, tmpDir string, stop *stopflag.Flag) (*dispatch.Result, error) {
		if phase.Name == "lint" {
			return &dispatch.Result{ExitCode: 1, Success: false}, nil
		}
		return &dispatch.Result{ExitCode: 0, Success: true}, nil
	})
	plan := &catalog.Plan{
		TrackA: []catalog.ResolvedPhase{
			{Entry: catalog.Entry{Name: "lint"}},
			{Entry: catalog.Entry{Name: "churn"}},
		},
		TrackB: []catalog.ResolvedPhase{
			{Entry: catalog.Entry{Name: "deps"}},
		},
		Final: []catalog.ResolvedPhase{
			{Entry: catalog.Entry{Name: "report"}},
		},
	}
	outcome, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcome.FailedPhases) != 1 || outcome.FailedPhases[0] != "lint" {
		t.Errorf("expected only lint to fail, got %v", outcome.FailedPhases)
	}
	if len(outcome.Phases) != 4 {
		t.Errorf("expected churn, deps, and report to still run after lint failed in Parallel, got %d phase outcomes", len(outcome.Phases))
	}
}

func TestRun_StopFlagOmitsRemainingPhases(t *testing.T) {
	calls := 0
	r := newTestRunner(t, func(ctx context.Context, phase catalog.ResolvedPhase, env *dispatch.Environment, tmpDir string, stop *stopflag.Flag) (*dispatch.Result, error) {
		calls++
		stop.Set()
		return &dispatch.Result{ExitCode: 0, Success: true}, nil
	})
	plan := &catalog.Plan{
		Foundation: []catalog.ResolvedPhase{
			{Entry: catalog.Entry{Name: "index"}},
			{Entry: catalog.Entry{Name: "detect-frameworks"}},
		},
	}
	outcome, err := r.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the stop flag to prevent the second phase from starting, got %d calls", calls)
	}
	if len(outcome.FailedPhases) != 1 {
		t.Errorf("expected the omitted phase to count as a failure, got %v", outcome.FailedPhases)
	}
}
