package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"tasksync/internal/backend/amstore"
	"tasksync/internal/backend/googletasks"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

// report prints err and returns the matching exit code.
func report(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidTask):
		fmt.Fprintln(errOut, "error: task text required")
		return exitcode.UserError
	case errors.Is(err, googletasks.ErrAuth):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, service.ErrNotFound):
		fmt.Fprintf(errOut, "error: not found: %v\n", err)
		return exitcode.UserError
	case errors.Is(err, amstore.ErrListExists):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.Is(err, service.ErrDetached), errors.Is(err, context.Canceled):
		fmt.Fprintln(errOut, "error: interrupted")
		return exitcode.Interrupted
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintln(errOut, "error: backend error: timed out waiting for the store")
		return exitcode.BackendError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}
