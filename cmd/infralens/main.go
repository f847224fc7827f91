package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/infralens/infralens/internal/logging"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitBusy     = 2
	exitCanceled = 130
)

func main() {
	if code := runMain(Execute, os.Stderr); code != exitOK {
		os.Exit(code)
	}
}

func runMain(execute func() error, stderr io.Writer) int {
	err := execute()
	if err == nil {
		return exitOK
	}
	code, report := exitCodeFor(err)
	if report != nil {
		emitCommandError(report, code, stderr)
	}
	return code
}

// exitError ends a command with a specific exit code. A silent exitError has
// already told the user what went wrong.
type exitError struct {
	code   int
	err    error
	silent bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCodeFor maps err to a process exit code and the error to report, which
// is nil when nothing should be printed.
func exitCodeFor(err error) (int, error) {
	var ee *exitError
	switch {
	case errors.As(err, &ee):
		if ee.silent {
			return ee.code, nil
		}
		if ee.err != nil {
			return ee.code, ee.err
		}
		return ee.code, err
	case errors.Is(err, context.Canceled):
		return exitCanceled, err
	default:
		return exitFailure, err
	}
}

// emitCommandError writes err as a structured log line for server commands
// and as plain text for interactive ones.
func emitCommandError(err error, code int, stderr io.Writer) {
	execCtx := currentCommandExecutionContext()
	if !execCtx.UsesStructuredLog {
		if code == exitCanceled {
			err = errors.New("canceled")
		}
		fmt.Fprintln(stderr, err)
		return
	}

	cfg, cfgErr := logging.LoadConfigFromEnv()
	if cfgErr != nil {
		cfg = logging.DefaultConfig()
	}
	msg := "command failed"
	if code == exitCanceled {
		msg = "command canceled"
	}
	logging.NewLogger(cfg, stderr, execCtx.CommandPath).Error(msg, "exit_code", code, "error", err)
}
