package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ConnectionError reports a failure to build the data source or open the handle.
type ConnectionError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode setting.
// When debugMode=false: returns simple "CODE: message" format.
// When debugMode=true: returns indented JSON with details, cause, stack trace and timestamp.
func (e *ConnectionError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return debugJSON(e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp, nil)
}

// Unwrap returns the underlying cause error for errors.Is and errors.As compatibility.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// QueryError carries the SQL text and bound values of a failed statement operation.
type QueryError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Query      string                 `json:"query,omitempty"`
	Params     []interface{}          `json:"params,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *QueryError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	extra := map[string]interface{}{}
	if e.Query != "" {
		extra["query"] = e.Query
	}
	if len(e.Params) > 0 {
		extra["params"] = e.Params
	}
	return debugJSON(e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp, extra)
}

// Unwrap returns the underlying cause error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// StatementError represents prepare, bind and execute failures.
type StatementError struct {
	QueryError
	QueryHash string `json:"query_hash,omitempty"`
	SQLState  string `json:"sqlstate,omitempty"`
}

// Error implements the error interface for StatementError.
func (e *StatementError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *StatementError) FormatError(debugMode bool) string {
	if !debugMode {
		return e.QueryError.FormatError(false)
	}

	extra := map[string]interface{}{}
	if e.Query != "" {
		extra["query"] = e.Query
	}
	if e.QueryHash != "" {
		extra["query_hash"] = e.QueryHash
	}
	if len(e.Params) > 0 {
		extra["params"] = e.Params
	}
	return debugJSON(e.Code, "STATEMENT_ERROR", e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp, extra)
}

// TransactionError represents begin, commit and rollback failures.
type TransactionError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *TransactionError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return debugJSON(e.Code, e.Type, e.Message, e.Details, e.Cause, e.StackTrace, e.Timestamp, nil)
}

// Unwrap returns the underlying cause error.
func (e *TransactionError) Unwrap() error {
	return e.Cause
}

// StateError represents an operation attempted in the wrong facade state.
type StateError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	StackTrace []string               `json:"stack_trace,omitempty"`
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *StateError) FormatError(debugMode bool) string {
	if !debugMode {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return debugJSON(e.Code, e.Type, e.Message, e.Details, nil, e.StackTrace, time.Time{}, nil)
}

const (
	codeNoActiveStatement = "E_NO_ACTIVE_STATEMENT"
	codeClientClosed      = "E_CLIENT_CLOSED"
)

// ErrNoActiveStatement creates a StateError for statement operations issued before Prepare.
func ErrNoActiveStatement(operation string) *StateError {
	return &StateError{
		Code:    codeNoActiveStatement,
		Type:    "STATE_ERROR",
		Message: fmt.Sprintf("%s requires a prepared statement", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
		StackTrace: captureStackTrace(),
	}
}

// ErrClientClosed creates a StateError for operations issued after Close.
func ErrClientClosed(operation string) *StateError {
	return &StateError{
		Code:    codeClientClosed,
		Type:    "STATE_ERROR",
		Message: fmt.Sprintf("%s called on a closed client", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
		StackTrace: captureStackTrace(),
	}
}

// IsNoActiveStatement reports whether err was caused by a missing prepared statement.
func IsNoActiveStatement(err error) bool {
	var se *StateError
	return errors.As(err, &se) && se.Code == codeNoActiveStatement
}

// IsClientClosed reports whether err was caused by using a closed client.
func IsClientClosed(err error) bool {
	var se *StateError
	return errors.As(err, &se) && se.Code == codeClientClosed
}

// ErrDriverNotSupported creates an error for a driver without a registered dialect.
func ErrDriverNotSupported(driver string) *ConnectionError {
	return &ConnectionError{
		Code:    "E_DRIVER_NOT_SUPPORTED",
		Type:    "CONNECTION_ERROR",
		Message: fmt.Sprintf("driver %q not supported", driver),
		Details: map[string]interface{}{
			"driver":    driver,
			"supported": SupportedDrivers(),
		},
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrDBNameRequired creates an error for parameter records without a database name.
func ErrDBNameRequired() *ConnectionError {
	return &ConnectionError{
		Code:       "E_DBNAME_REQUIRED",
		Type:       "CONNECTION_ERROR",
		Message:    "database name not specified",
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrInvalidDSN creates an error for connection strings that cannot be parsed.
func ErrInvalidDSN(dsn, reason string) *ConnectionError {
	return &ConnectionError{
		Code:    "E_INVALID_DSN",
		Type:    "CONNECTION_ERROR",
		Message: fmt.Sprintf("invalid data source name: %s", reason),
		Details: map[string]interface{}{
			"dsn": dsn,
		},
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

func debugJSON(code, typ, message string, details map[string]interface{}, cause error, stack []string, ts time.Time, extra map[string]interface{}) string {
	errorData := map[string]interface{}{
		"code":    code,
		"type":    typ,
		"message": message,
	}

	if len(details) > 0 {
		errorData["details"] = details
	}

	for k, v := range extra {
		errorData[k] = v
	}

	if cause != nil {
		errorData["cause"] = map[string]interface{}{"message": cause.Error()}
	}

	if len(stack) > 0 {
		errorData["stack_trace"] = stack
	}

	if !ts.IsZero() {
		errorData["timestamp"] = ts.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) // Skip captureStackTrace, the error constructor, and runtime.Callers

	frames := make([]string, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}

	return frames
}

// FormatError is a helper to format any error with debug mode support.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}

	type debugFormatter interface {
		FormatError(bool) string
	}

	if formatter, ok := err.(debugFormatter); ok {
		return formatter.FormatError(debugMode)
	}

	return err.Error()
}
