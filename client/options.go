package client

import (
	"time"
)

// ErrMode selects how statement and transaction failures reach the caller.
type ErrMode int

const (
	// ErrModeException returns every failure as an error. Default.
	ErrModeException ErrMode = iota
	// ErrModeSilent records failures in ErrorInfo and returns nil.
	// Connection failures are always returned.
	//
	// Bind, execute and fetch failures are recorded on the statement, so pair
	// it with ErrorInfoFromStatement, or read Statement().ErrorInfo(), to see
	// them. With ErrorInfoFromHandle only prepare and transaction failures
	// reach Client.ErrorInfo.
	ErrModeSilent
)

// String returns the string representation of the error mode.
func (m ErrMode) String() string {
	switch m {
	case ErrModeException:
		return "exception"
	case ErrModeSilent:
		return "silent"
	default:
		return "unknown"
	}
}

// ErrorInfoSource selects which object ErrorInfo reports on.
type ErrorInfoSource int

const (
	// ErrorInfoFromHandle reports the last open, prepare or transaction operation.
	// A clean handle yields SQLState "00000" with null code and message.
	ErrorInfoFromHandle ErrorInfoSource = iota
	// ErrorInfoFromStatement reports the last bind, execute or fetch operation,
	// and nil when no statement has been prepared.
	ErrorInfoFromStatement
)

func (s ErrorInfoSource) String() string {
	switch s {
	case ErrorInfoFromHandle:
		return "handle"
	case ErrorInfoFromStatement:
		return "statement"
	default:
		return "unknown"
	}
}

// Options configures the facade.
type Options struct {
	// ErrMode controls whether statement failures are returned or recorded.
	// Default: ErrModeException
	ErrMode ErrMode

	// ErrorInfoSource selects the handle or the current statement as the
	// origin of ErrorInfo.
	// Default: ErrorInfoFromHandle
	ErrorInfoSource ErrorInfoSource

	// RequireDBName rejects parameter records without a database name.
	// Default: false (empty database name allowed)
	RequireDBName bool

	// ConnectTimeout bounds the ping issued after opening the handle.
	// Default: 10s
	ConnectTimeout time.Duration

	// DebugMode makes logged errors carry details and stack traces.
	// Default: false
	DebugMode bool

	// Logger is the logger implementation to use.
	// If nil, a JSON logger at LogLevel writing to stderr is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "WARN"
	LogLevel string

	// Hooks are registered in order when the client is created.
	Hooks []Hook
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		ErrMode:         ErrModeException,
		ErrorInfoSource: ErrorInfoFromHandle,
		RequireDBName:   false,
		ConnectTimeout:  10 * time.Second,
		DebugMode:       false,
		LogLevel:        "WARN",
	}
}
