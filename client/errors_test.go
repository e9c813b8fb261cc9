package client

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConnectionError(t *testing.T) {
	err := &ConnectionError{
		Code:    "E_PING_FAILED",
		Type:    "CONNECTION_ERROR",
		Message: "database unreachable",
		Details: map[string]interface{}{
			"dsn": "mysql:host=db;port=3306;dbname=app",
		},
	}

	if got := err.Error(); got != "E_PING_FAILED: database unreachable" {
		t.Errorf("unexpected message: %s", got)
	}

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(err.FormatError(true)), &parsed); jsonErr != nil {
		t.Fatalf("debug format should be valid JSON: %v", jsonErr)
	}
	if parsed["code"] != "E_PING_FAILED" {
		t.Errorf("expected code=E_PING_FAILED, got %v", parsed["code"])
	}
	if parsed["type"] != "CONNECTION_ERROR" {
		t.Errorf("expected type=CONNECTION_ERROR, got %v", parsed["type"])
	}
	if _, ok := parsed["details"]; !ok {
		t.Error("expected details in debug output")
	}
}

func TestConnectionErrorWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ConnectionError{
		Code:    "E_PING_FAILED",
		Type:    "CONNECTION_ERROR",
		Message: "database unreachable",
		Cause:   cause,
	}

	if !strings.Contains(err.Error(), "caused by: connection refused") {
		t.Errorf("error should mention its cause, got: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	var parsed map[string]interface{}
	json.Unmarshal([]byte(err.FormatError(true)), &parsed)
	if parsed["cause"] == nil {
		t.Error("expected cause field in JSON")
	}
}

func TestStatementErrorFormatting(t *testing.T) {
	err := &StatementError{
		QueryError: QueryError{
			Code:    "E_EXECUTE_FAILED",
			Type:    "STATEMENT_ERROR",
			Message: "failed to execute statement",
			Query:   "SELECT * FROM missing",
			Params:  []interface{}{int64(1)},
		},
		QueryHash: queryHash("SELECT * FROM missing"),
	}

	if got := err.Error(); got != "E_EXECUTE_FAILED: failed to execute statement" {
		t.Errorf("unexpected message: %s", got)
	}

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(err.FormatError(true)), &parsed); jsonErr != nil {
		t.Fatalf("debug format should be valid JSON: %v", jsonErr)
	}
	if parsed["query"] != "SELECT * FROM missing" {
		t.Errorf("expected query in debug output, got %v", parsed["query"])
	}
	if parsed["query_hash"] != err.QueryHash {
		t.Errorf("expected query_hash in debug output, got %v", parsed["query_hash"])
	}
	if parsed["params"] == nil {
		t.Error("expected params in debug output")
	}
}

func TestTransactionErrorUnwrap(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := &TransactionError{
		Code:    "E_COMMIT_FAILED",
		Type:    "TRANSACTION_ERROR",
		Message: "failed to commit transaction",
		Cause:   cause,
	}

	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
	if !strings.HasPrefix(err.Error(), "E_COMMIT_FAILED") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestStateErrors(t *testing.T) {
	err := ErrNoActiveStatement("Bind")
	if !IsNoActiveStatement(err) {
		t.Error("expected IsNoActiveStatement")
	}
	if IsClientClosed(err) {
		t.Error("no-active-statement is not a closed client")
	}
	if len(err.StackTrace) == 0 {
		t.Error("expected a stack trace")
	}

	closed := ErrClientClosed("Prepare")
	if !IsClientClosed(closed) {
		t.Error("expected IsClientClosed")
	}
	if !strings.Contains(closed.Error(), "Prepare") {
		t.Errorf("message should name the operation: %s", closed.Error())
	}

	if IsNoActiveStatement(errors.New("other")) || IsNoActiveStatement(nil) {
		t.Error("unrelated errors must not match")
	}
}

func TestConnectionErrorFactories(t *testing.T) {
	notSupported := ErrDriverNotSupported("oracle")
	if notSupported.Code != "E_DRIVER_NOT_SUPPORTED" {
		t.Errorf("unexpected code: %s", notSupported.Code)
	}
	if _, ok := notSupported.Details["supported"]; !ok {
		t.Error("expected supported drivers in details")
	}

	if ErrDBNameRequired().Code != "E_DBNAME_REQUIRED" {
		t.Error("unexpected code for ErrDBNameRequired")
	}

	invalid := ErrInvalidDSN("x", "missing driver prefix")
	if invalid.Code != "E_INVALID_DSN" || !strings.Contains(invalid.Message, "missing driver prefix") {
		t.Errorf("unexpected error: %+v", invalid)
	}
}

func TestFormatErrorHelper(t *testing.T) {
	if FormatError(nil, true) != "" {
		t.Error("nil error formats to empty string")
	}

	plain := errors.New("plain")
	if FormatError(plain, true) != "plain" {
		t.Error("errors without FormatError use Error()")
	}

	err := ErrDBNameRequired()
	if FormatError(err, false) != err.Error() {
		t.Error("non-debug formatting should match Error()")
	}
	if !strings.Contains(FormatError(err, true), "stack_trace") {
		t.Error("debug formatting should include the stack trace")
	}
}
