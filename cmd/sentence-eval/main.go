package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Every sentence evaluated and recorded
	ExitEvalFailed = 1 // One or more sentences or fixture checks failed
	ExitError      = 2 // Configuration or runtime error
)

// EvalFailureError indicates that the command ran to completion but some
// sentences failed or a replay did not match its fixture.
type EvalFailureError struct {
	Message string
}

func (e *EvalFailureError) Error() string {
	return e.Message
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, err)

	var failure *EvalFailureError
	if errors.As(err, &failure) {
		return ExitEvalFailed
	}
	return ExitError
}
