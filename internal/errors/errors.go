package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing file, section or key
	ErrorTypeConfiguration ErrorType = iota
	// Schema violations - an entity written without its primary key or
	// against an invalid entity definition
	ErrorTypeSchema
	// Source errors - the GitLab API is unreachable or rejects the request
	ErrorTypeSource
	// Sink errors - the Neo4j connection or a query failed
	ErrorTypeSink
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityWarning - worth reporting, execution continues
	SeverityWarning Severity = iota
	// SeverityFatal - stops the current run
	SeverityFatal
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches on the error category, so errors.Is(err, &Error{Type: ...})
// and the Is* helpers below work through wrap chains.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityFatal
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeConfiguration:
		return "CONFIGURATION"
	case ErrorTypeSchema:
		return "SCHEMA"
	case ErrorTypeSource:
		return "SOURCE"
	case ErrorTypeSink:
		return "SINK"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// ConfigurationError creates a fatal configuration error
func ConfigurationError(message string) *Error {
	return New(ErrorTypeConfiguration, SeverityFatal, message)
}

// ConfigurationErrorf creates a fatal configuration error with formatting
func ConfigurationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfiguration, SeverityFatal, fmt.Sprintf(format, args...))
}

// SchemaViolation creates a fatal schema violation
func SchemaViolation(message string) *Error {
	return New(ErrorTypeSchema, SeverityFatal, message)
}

// SchemaViolationf creates a fatal schema violation with formatting
func SchemaViolationf(format string, args ...interface{}) *Error {
	return New(ErrorTypeSchema, SeverityFatal, fmt.Sprintf(format, args...))
}

// SourceUnavailable wraps a GitLab API failure
func SourceUnavailable(err error, message string) *Error {
	return Wrap(err, ErrorTypeSource, SeverityFatal, message)
}

// SourceUnavailablef wraps a GitLab API failure with formatting
func SourceUnavailablef(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeSource, SeverityFatal, fmt.Sprintf(format, args...))
}

// SinkUnavailable wraps a Neo4j failure
func SinkUnavailable(err error, message string) *Error {
	return Wrap(err, ErrorTypeSink, SeverityFatal, message)
}

// SinkUnavailablef wraps a Neo4j failure with formatting
func SinkUnavailablef(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeSink, SeverityFatal, fmt.Sprintf(format, args...))
}

// InternalError creates an internal error
func InternalError(message string) *Error {
	return New(ErrorTypeInternal, SeverityFatal, message)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityFatal, fmt.Sprintf(format, args...))
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if e, ok := err.(*Error); ok {
		return e.IsFatal()
	}

	return false
}

// GetType returns the type of an error
func GetType(err error) ErrorType {
	if err == nil {
		return ErrorTypeInternal
	}

	if e, ok := err.(*Error); ok {
		return e.Type
	}

	return ErrorTypeInternal
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrorTypeConfiguration
}

// IsSchemaViolation reports whether err is a schema violation
func IsSchemaViolation(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrorTypeSchema
}

// IsSourceUnavailable reports whether err is a source failure
func IsSourceUnavailable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrorTypeSource
}

// IsSinkUnavailable reports whether err is a sink failure
func IsSinkUnavailable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrorTypeSink
}
