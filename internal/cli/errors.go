package cli

import (
	"errors"
	"fmt"
)

// ExitError represents a command failure with a specific exit code.
//
// Cobra RunE functions return it instead of calling os.Exit, so tests can
// assert on exit codes without terminating the process. [Execute] performs
// the actual exit.
type ExitError struct {
	// Code is the exit code to return to the shell.
	// Convention: 0 = success, 1 = workflow failure, 2 = usage error.
	Code int
}

// Error implements the error interface in the os/exec "exit status N" format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if err is or wraps an [ExitError] and extracts its
// exit code. It returns (0, false) for nil or other errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
