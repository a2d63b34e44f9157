package output

import (
	"errors"
	"fmt"

	"github.com/connvault/connvault/internal/secret"
)

// Exit codes following sysexits.h convention
const (
	ExitOK           = 0  // Success
	ExitGeneral      = 1  // General error
	ExitUsage        = 2  // Invalid usage / bad arguments
	ExitUnavailable  = 3  // No secret backend available
	ExitNotFound     = 4  // Credentials not found
	ExitLocked       = 5  // Vault locked / not signed in
	ExitStoreError   = 6  // Store operation failed
	ExitRateLimit    = 75 // Rate limited (EX_TEMPFAIL from sysexits.h)
	ExitTimeout      = 8  // Operation timeout
	ExitBackendError = 9  // Backend CLI error (non-specific)
	ExitConfigError  = 10 // Configuration error
)

// CLIError represents a structured error with exit code and optional hint
type CLIError struct {
	ExitCode int
	Message  string
	Hint     string
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// NewCLIError creates a new CLIError
func NewCLIError(code int, msg string) *CLIError {
	return &CLIError{
		ExitCode: code,
		Message:  msg,
	}
}

// WithHint adds a user-facing hint to the error
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// FromSecretError maps a secret-layer error onto a CLIError with the
// matching exit code and a recovery hint where one exists. CLIErrors
// pass through unchanged.
func FromSecretError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	switch {
	case errors.Is(err, secret.ErrBackendUnavailable):
		return NewCLIError(ExitUnavailable, err.Error()).
			WithHint("Check backend status with: connvault backends")
	case errors.Is(err, secret.ErrStoreFailed):
		return NewCLIError(ExitStoreError, err.Error())
	case errors.Is(err, secret.ErrRetrieveFailed):
		return NewCLIError(ExitNotFound, err.Error())
	case errors.Is(err, secret.ErrConnectionFailed):
		return NewCLIError(ExitBackendError, err.Error())
	default:
		return NewCLIError(ExitGeneral, err.Error())
	}
}

// ExitWithError prints the error via the formatter and exits with the correct code
func ExitWithError(formatter Formatter, err error) {
	if cliErr, ok := err.(*CLIError); ok {
		formatter.PrintError(err)
		if cliErr.Hint != "" {
			formatter.PrintHint(cliErr.Hint)
		}
		// Note: Actual os.Exit call should be in main.go, not here
		// This function is just a helper
		return
	}

	// Unknown error - print as general error
	formatter.PrintError(fmt.Errorf("error: %v", err))
}
