package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"

	goerrors "github.com/go-errors/errors"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"

	// Pipeline taxonomy
	ErrorTypeSourceUnavailable  ErrorType = "source_unavailable"
	ErrorTypeMissingCredentials ErrorType = "missing_credentials"
	ErrorTypeMalformedRecord    ErrorType = "malformed_record"
	ErrorTypeEmptyInput         ErrorType = "empty_input"
	ErrorTypeFitFailure         ErrorType = "fit_failure"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
	Stack   []byte         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// StackTrace returns the stack captured when the error was created
func (e *AppError) StackTrace() []byte {
	return e.Stack
}

// newAppError is an unexported helper to create AppError instances
func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	var stack []byte
	if cause != nil {
		if stackErr, ok := cause.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(cause, 3).Stack()
		}
	} else {
		stack = goerrors.Wrap(message, 3).Stack()
	}

	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
		Stack:   stack,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// NewSourceUnavailableError reports a failed fetch for one page/role/country slice.
func NewSourceUnavailableError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeSourceUnavailable, code, message, cause)
}

// NewMissingCredentialsError is fatal for the fetch stage only.
func NewMissingCredentialsError(message string) *AppError {
	return newAppError(ErrorTypeMissingCredentials, ErrCodeMissingCredentials, message, nil)
}

func NewMalformedRecordError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeMalformedRecord, code, message, cause)
}

func NewEmptyInputError(message string) *AppError {
	return newAppError(ErrorTypeEmptyInput, ErrCodeNoData, message, nil)
}

func NewFitFailureError(message string, cause error) *AppError {
	return newAppError(ErrorTypeFitFailure, ErrCodeFitFailed, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsType reports whether any error in err's chain is an AppError of the given type.
func IsType(err error, typ ErrorType) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == typ {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// TypeOf returns the type of the outermost AppError in err's chain, or internal.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return &Logger{logger: logger}
}

// NewLoggerWithHandler builds a Logger on top of an arbitrary slog handler.
func NewLoggerWithHandler(handler slog.Handler) *Logger {
	return &Logger{logger: slog.New(handler)}
}

// With returns a logger that always includes the given fields
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		// Add context if available
		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		// Add additional args
		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		// Regular error
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound       = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable    = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat      = "INVALID_FORMAT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNetworkTimeout     = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeMissingCredentials = "MISSING_CREDENTIALS"
	ErrCodeSourceStatus       = "SOURCE_BAD_STATUS"
	ErrCodeSourceRequest      = "SOURCE_REQUEST_FAILED"
	ErrCodeCircuitOpen        = "SOURCE_CIRCUIT_OPEN"
	ErrCodeBadDate            = "BAD_DATE"
	ErrCodeBadSalary          = "BAD_SALARY"
	ErrCodeBadRecord          = "BAD_RECORD"
	ErrCodeNoData             = "NO_DATA"
	ErrCodeFitFailed          = "FIT_FAILED"
	ErrCodeStoreFailed        = "STORE_FAILED"
	ErrCodeExportFailed       = "EXPORT_FAILED"
)
