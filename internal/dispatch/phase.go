package dispatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pfaudit/pipeline/internal/catalog"
	"github.com/pfaudit/pipeline/internal/stopflag"
)

// pollInterval is the cadence at which RunPhase checks for child exit,
// stop-flag, and timeout (§4.3 rule 2).
const pollInterval = 100 * time.Millisecond

// gracePeriod is how long a terminated child is given to exit cleanly
// before being killed outright.
const gracePeriod = 5 * time.Second

// Result is the outcome of running one phase's subprocess.
type Result struct {
	ExitCode    int
	Success     bool
	TimedOut    bool
	Interrupted bool
	Stdout      string
	Stderr      string
	Elapsed     time.Duration
}

// RunPhase executes one catalog phase as a subprocess. Stdout and
// stderr are captured to two separate project-local temp files under
// tmpDir so the streams are never mixed (§4.3 rule 1); both are read
// back and deleted once the child exits.
func RunPhase(ctx context.Context, phase catalog.ResolvedPhase, env *Environment, tmpDir string, stop *stopflag.Flag) (*Result, error) {
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("creating phase temp dir: %w", err)
	}

	outFile, err := os.CreateTemp(tmpDir, phase.Name+"-stdout-*")
	if err != nil {
		return nil, fmt.Errorf("creating stdout capture file: %w", err)
	}
	defer os.Remove(outFile.Name())
	defer outFile.Close()

	errFile, err := os.CreateTemp(tmpDir, phase.Name+"-stderr-*")
	if err != nil {
		return nil, fmt.Errorf("creating stderr capture file: %w", err)
	}
	defer os.Remove(errFile.Name())
	defer errFile.Close()

	cmd := exec.Command(phase.Binary, phase.Args...)
	cmd.Dir = env.ProjectRoot
	cmd.Env = BuildEnv(env, phase.Name)
	cmd.Stdout = outFile
	cmd.Stderr = errFile
	// Own process group so a grace-period SIGTERM/kill reaches any
	// children the phase itself spawned.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting phase %q: %w", phase.Name, err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	result := &Result{}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-waitErr:
			result.Elapsed = time.Since(start)
			code, classifyErr := exitCode(err)
			if classifyErr != nil {
				return nil, fmt.Errorf("phase %q: %w", phase.Name, classifyErr)
			}
			result.ExitCode = code
			result.Success = classifySuccess(code, phase.TreatsNonzeroAsFindings)
			return finishResult(result, outFile.Name(), errFile.Name())

		case <-ticker.C:
			timedOut := phase.Timeout > 0 && time.Since(start) > phase.Timeout
			interrupted := stop.IsSet() || ctx.Err() != nil
			if !timedOut && !interrupted {
				continue
			}
			result.TimedOut = timedOut
			result.Interrupted = interrupted
			terminate(cmd, waitErr)
			result.Elapsed = time.Since(start)
			result.ExitCode = -1
			result.Success = false
			return finishResult(result, outFile.Name(), errFile.Name())
		}
	}
}

// terminate sends SIGTERM to the phase's process group, waits up to
// gracePeriod for it to exit, then kills it outright (§4.3 rule 2).
func terminate(cmd *exec.Cmd, waitErr <-chan error) {
	pgid := cmd.Process.Pid
	syscall.Kill(-pgid, syscall.SIGTERM)

	select {
	case <-waitErr:
		return
	case <-time.After(gracePeriod):
		syscall.Kill(-pgid, syscall.SIGKILL)
		<-waitErr
	}
}

func finishResult(result *Result, outPath, errPath string) (*Result, error) {
	if data, err := os.ReadFile(outPath); err == nil {
		result.Stdout = string(data)
	}
	if data, err := os.ReadFile(errPath); err == nil {
		result.Stderr = string(data)
	}
	return result, nil
}
