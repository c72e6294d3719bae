package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "DWHL1001"
	ErrCodeConnectionTimeout    ErrorCode = "DWHL1002"
	ErrCodeAuthenticationFailed ErrorCode = "DWHL1003"
	ErrCodeDriverUnavailable    ErrorCode = "DWHL1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "DWHL2001"
	ErrCodeConfigInvalid  ErrorCode = "DWHL2002"
	ErrCodeConfigMissing  ErrorCode = "DWHL2003"
	ErrCodeUnknownDialect ErrorCode = "DWHL2004"

	// Staging source errors (3xxx)
	ErrCodeSourceNotFound  ErrorCode = "DWHL3001"
	ErrCodeSourceMalformed ErrorCode = "DWHL3002"
	ErrCodeJSONPaths       ErrorCode = "DWHL3003"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "DWHL4001"
	ErrCodeSQLPermission     ErrorCode = "DWHL4002"
	ErrCodeSQLTimeout        ErrorCode = "DWHL4003"
	ErrCodeSQLObjectNotFound ErrorCode = "DWHL4005"
	ErrCodeSQLExecution      ErrorCode = "DWHL4006"
	ErrCodeCopyFailed        ErrorCode = "DWHL4007"
	ErrCodeStepAborted       ErrorCode = "DWHL4010"

	// Credential errors (7xxx)
	ErrCodeCredentialNotFound ErrorCode = "DWHL7001"
	ErrCodeEncryptionFailed   ErrorCode = "DWHL7002"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "DWHL9001"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run cannot continue, operator action required
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// Inherit context from a wrapped AppError
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check the CLUSTER section of your configuration",
			"Verify the warehouse endpoint is reachable from this host",
			"Check security group and firewall settings",
		)
}

// ConfigMissing creates an error for a required configuration key that is absent
func ConfigMissing(key string) *AppError {
	return New(ErrCodeConfigMissing, fmt.Sprintf("Missing required configuration key %s", key)).
		WithSeverity(SeverityCritical).
		WithContext("key", key).
		WithSuggestions(
			fmt.Sprintf("Set %s in dwh.cfg", key),
			fmt.Sprintf("Or export DWH_%s", strings.ToUpper(strings.ReplaceAll(key, ".", "_"))),
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithSeverity(SeverityCritical).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'dwhload config validate' after editing dwh.cfg",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := New(ErrCodeSQLExecution, message)
	detail := strings.ToLower(message)
	if cause != nil {
		err = Wrap(cause, ErrCodeSQLExecution, message)
		detail += " " + strings.ToLower(cause.Error())
	}
	_ = err.WithContext("query", truncateString(query, 200))

	switch {
	case strings.Contains(detail, "permission") || strings.Contains(detail, "access denied") ||
		strings.Contains(detail, "not authorized"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check that the IAM role is attached to the cluster",
			"Verify the role can read the configured S3 prefixes",
			"Verify the database user owns the target tables",
		)
	case strings.Contains(detail, "timeout") || strings.Contains(detail, "deadline exceeded"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase WAREHOUSE.TIMEOUT",
			"Check cluster load and WLM queue configuration",
		)
	case strings.Contains(detail, "does not exist") || strings.Contains(detail, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Run 'dwhload create-tables' before loading",
			"Check the schema search path of the database user",
		)
	case strings.Contains(detail, "syntax error"):
		err.Code = ErrCodeSQLSyntax
		_ = err.WithSuggestions(
			"Check that --dialect matches the target warehouse",
		)
	}

	return err
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// AsAppError returns the outermost AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
