package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/churnwatch/internal/session"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0
	ExitFailed  = 1 // Authentication, validation or scoring failed
	ExitError   = 2 // Configuration or runtime error
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var authErr *session.AuthError
	var failed *analysisError
	if errors.As(err, &authErr) || errors.As(err, &failed) {
		return ExitFailed
	}
	return ExitError
}

// analysisError is a scoring run that ended without results.
type analysisError struct {
	Message string
}

func (e *analysisError) Error() string { return e.Message }
