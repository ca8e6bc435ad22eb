package dispatch

import (
	"errors"
	"os/exec"
)

// exitCode pulls a process exit code out of the error cmd.Wait returns.
// A nil error means exit 0; an *exec.ExitError carries the real code (a
// child killed by a signal also arrives this way, with code -1); any
// other error (e.g. the process failed to start) is reported as-is
// rather than guessed at.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// classifySuccess applies the per-phase findings-bearing rule: a
// findings-bearing phase treats exit codes 0, 1, 2 all as success; every
// other phase treats any nonzero code as failure (§4.3 rule 4, §9's
// per-phase flag replacing hardcoded phase-name checks).
func classifySuccess(code int, treatsNonzeroAsFindings bool) bool {
	if treatsNonzeroAsFindings {
		return code == 0 || code == 1 || code == 2
	}
	return code == 0
}
