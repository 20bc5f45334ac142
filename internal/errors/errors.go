package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "Authentication"
	ErrorTypeConfiguration  ErrorType = "Configuration"
	ErrorTypeStorage        ErrorType = "Storage"
	ErrorTypeFileSystem     ErrorType = "FileSystem"
	ErrorTypeNetwork        ErrorType = "Network"
	ErrorTypePermission     ErrorType = "Permission"
	ErrorTypeValidation     ErrorType = "Validation"
)

// Backend represents the storage backend an error relates to
type Backend string

const (
	BackendS3      Backend = "S3"
	BackendGCS     Backend = "GCS"
	BackendAzure   Backend = "Azure"
	BackendLocal   Backend = "Local"
	BackendUnknown Backend = "Unknown"
)

// APIDriftError represents a user-facing error with actionable guidance
type APIDriftError struct {
	Type        ErrorType
	Backend     Backend
	Message     string
	Cause       string
	Solutions   []string
	Verify      string
	Help        string
	Environment string
	Err         error
}

// Error implements the error interface
func (e *APIDriftError) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)
	if e.Cause != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Cause)
	}

	return sb.String()
}

// Unwrap exposes the underlying error, if any
func (e *APIDriftError) Unwrap() error {
	return e.Err
}

// Format implements fmt.Formatter for custom formatting
func (e *APIDriftError) Format(f fmt.State, verb rune) {
	switch verb {
	case 's':
		fmt.Fprintf(f, "%s", e.Error())
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "[%s/%s] %s", e.Type, e.Backend, e.Error())
		} else {
			fmt.Fprintf(f, "%s", e.Error())
		}
	}
}

// New creates a new APIDriftError
func New(errType ErrorType, backend Backend, message string) *APIDriftError {
	return &APIDriftError{
		Type:        errType,
		Backend:     backend,
		Message:     message,
		Environment: detectEnvironment(),
	}
}

// WithCause adds cause information
func (e *APIDriftError) WithCause(cause string) *APIDriftError {
	e.Cause = cause
	return e
}

// WithErr attaches the underlying error
func (e *APIDriftError) WithErr(err error) *APIDriftError {
	e.Err = err
	if e.Cause == "" && err != nil {
		e.Cause = err.Error()
	}
	return e
}

// WithSolutions adds solution steps
func (e *APIDriftError) WithSolutions(solutions ...string) *APIDriftError {
	e.Solutions = append(e.Solutions, solutions...)
	return e
}

// WithVerify adds verification command
func (e *APIDriftError) WithVerify(verify string) *APIDriftError {
	e.Verify = verify
	return e
}

// WithHelp adds help command
func (e *APIDriftError) WithHelp(help string) *APIDriftError {
	e.Help = help
	return e
}

// detectEnvironment detects the current environment
func detectEnvironment() string {
	ciVars := []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_HOME", "BUILDKITE"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return "CI/CD detected"
		}
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "Container environment detected"
	}

	return "Development workstation detected"
}

// IsUserError checks if error requires user action
func IsUserError(err error) bool {
	var apiErr *APIDriftError
	return errors.As(err, &apiErr)
}

// GetExitCode returns appropriate exit code for error type
func GetExitCode(err error) int {
	var apiErr *APIDriftError
	if !errors.As(err, &apiErr) {
		return 1
	}

	switch apiErr.Type {
	case ErrorTypeAuthentication:
		return 77 // EX_NOPERM
	case ErrorTypeConfiguration, ErrorTypeValidation:
		return 78 // EX_CONFIG
	case ErrorTypePermission:
		return 77 // EX_NOPERM
	case ErrorTypeFileSystem:
		return 66 // EX_NOINPUT
	case ErrorTypeNetwork, ErrorTypeStorage:
		return 69 // EX_UNAVAILABLE
	default:
		return 1
	}
}
