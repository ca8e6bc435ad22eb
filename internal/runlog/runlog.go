// Package runlog implements the single append-only per-run log
// (.pf/pipeline.log), line-buffered and flushed after every record so a
// crash leaves a usable log (§4.7). Built on charmbracelet/log, the
// pack's only structured-logging library, since the teacher repo has no
// logging library of its own for this concern.
package runlog

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is one run's handle onto pipeline.log.
type Logger struct {
	file *os.File
	base *log.Logger
}

// Open creates or appends to the pipeline log at path. A fresh run
// always appends rather than truncating; the Archiver is responsible
// for relocating the previous run's log before a new one starts writing.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening pipeline log: %w", err)
	}
	base := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
	})
	return &Logger{file: f, base: base}, nil
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// flush fsyncs the log file. Errors are swallowed: a log write failure
// is reported to stderr and never aborts the run (§7).
func (l *Logger) flush() {
	if err := l.file.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: pipeline.log sync failed: %v\n", err)
	}
}

// PhaseStart records a phase beginning execution.
func (l *Logger) PhaseStart(stage, track, phase string, args []string) {
	l.base.Info("phase start", "stage", stage, "track", track, "phase", phase, "args", args)
	l.flush()
}

// PhaseExit records a phase's terminal outcome.
func (l *Logger) PhaseExit(phase string, exitCode int, success bool, elapsed string) {
	l.base.Info("phase exit", "phase", phase, "exit_code", exitCode, "success", success, "elapsed", elapsed)
	l.flush()
}

// PhaseTimeout records a phase being killed for exceeding its timeout.
func (l *Logger) PhaseTimeout(phase string, timeout string) {
	l.base.Warn("phase timeout", "phase", phase, "timeout", timeout)
	l.flush()
}

// PhaseOutputTail appends a phase's captured stdout/stderr tail.
func (l *Logger) PhaseOutputTail(phase, stream, text string) {
	if text == "" {
		return
	}
	l.base.Info("phase output", "phase", phase, "stream", stream, "text", text)
	l.flush()
}

// StageBarrier records a stage boundary being crossed.
func (l *Logger) StageBarrier(stage string) {
	l.base.Info("stage barrier", "stage", stage)
	l.flush()
}

// Interrupt records the orchestrator receiving a stop signal.
func (l *Logger) Interrupt(reason string) {
	l.base.Error("interrupted", "reason", reason)
	l.flush()
}

// Error records a pipeline-internal error (archiver, chunker, summary).
func (l *Logger) Error(component, message string, err error) {
	l.base.Error("component error", "component", component, "message", message, "err", err)
	l.flush()
}

// RunComplete records the final status of the run.
func (l *Logger) RunComplete(exitCode int, status string) {
	l.base.Info("run complete", "exit_code", exitCode, "status", status)
	l.flush()
}
