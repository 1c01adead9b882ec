// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/invowk/kiln/internal/issue"
)

// ServiceError carries the issue guide the CLI renders below the error.
// Always create via newServiceError.
type ServiceError struct {
	Err     error
	IssueID issue.Id
}

func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderError prints err and, for service errors, the matching guide.
func renderError(stderr io.Writer, err error, verbose bool, style string) {
	fmt.Fprintf(stderr, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID == 0 {
		return
	}
	entry := issue.Get(svcErr.IssueID)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(style)
	if renderErr != nil {
		slog.Warn("failed to render issue guide", "issueID", svcErr.IssueID, "error", renderErr)
		return
	}
	fmt.Fprint(stderr, rendered)
}

// ExitError ends the process with Code. A nil Err means the failure was
// already reported, so nothing more is printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
