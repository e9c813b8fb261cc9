package client

import (
	"database/sql"
	"errors"
)

const (
	sqlStateOK      = "00000"
	sqlStateGeneral = "HY000"
	// sqlStateParam is reported for parameters missing at execute time or
	// bound under a name the statement does not declare.
	sqlStateParam = "HY093"
)

// ErrorInfo is the (SQLSTATE, driver code, message) triple of the last operation.
// DriverCode and Message are null when the operation succeeded.
type ErrorInfo struct {
	SQLState   string
	DriverCode sql.NullInt64
	Message    sql.NullString
}

// Tuple returns the triple with nil in place of null members.
func (e ErrorInfo) Tuple() [3]interface{} {
	out := [3]interface{}{e.SQLState, nil, nil}
	if e.DriverCode.Valid {
		out[1] = e.DriverCode.Int64
	}
	if e.Message.Valid {
		out[2] = e.Message.String
	}
	return out
}

// HasError reports whether the driver code is set.
func (e ErrorInfo) HasError() bool {
	return e.DriverCode.Valid
}

func cleanErrorInfo() ErrorInfo {
	return ErrorInfo{SQLState: sqlStateOK}
}

func newErrorInfo(state string, code int64, message string) ErrorInfo {
	return ErrorInfo{
		SQLState:   state,
		DriverCode: sql.NullInt64{Int64: code, Valid: true},
		Message:    sql.NullString{String: message, Valid: true},
	}
}

// classifyError maps err to an ErrorInfo, asking the dialect first. Errors the
// dialect does not recognise get the general SQLSTATE and driver code -1.
func classifyError(d Dialect, err error) ErrorInfo {
	if err == nil {
		return cleanErrorInfo()
	}
	if d != nil {
		if info, ok := d.ErrorInfo(err); ok {
			return info
		}
	}

	state := sqlStateGeneral
	var stmtErr *StatementError
	if errors.As(err, &stmtErr) && stmtErr.SQLState != "" {
		state = stmtErr.SQLState
	}
	return newErrorInfo(state, -1, err.Error())
}
