package client

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash"
	"github.com/jmoiron/sqlx"
)

const (
	kindQuery = "query"
	kindExec  = "exec"
)

// Row is one fetched row keyed by column name.
type Row map[string]interface{}

// FetchMode selects the keys of rows returned by FetchAll.
type FetchMode int

const (
	// FetchAssoc keys rows by column name only.
	FetchAssoc FetchMode = iota
	// FetchBoth also keys every value by its column position ("0", "1", ...).
	FetchBoth
)

// Statement is the facade's current prepared statement.
// Mutation happens only through the owning Client.
type Statement struct {
	query     string
	compiled  compiledQuery
	hash      string
	kind      string
	stmt      *sqlx.Stmt
	owner     *sqlx.Tx // transaction the statement was prepared on, nil for the handle
	createdAt time.Time

	bound map[string]interface{}
	order []string

	rows     *sqlx.Rows
	columns  []string
	fetched  int64
	affected int64
	errInfo  ErrorInfo
}

func newStatement(query string, cq compiledQuery, stmt *sqlx.Stmt, owner *sqlx.Tx) *Statement {
	return &Statement{
		query:     query,
		compiled:  cq,
		hash:      queryHash(query),
		kind:      inferStatementKind(query),
		stmt:      stmt,
		owner:     owner,
		createdAt: time.Now(),
		bound:     make(map[string]interface{}),
		errInfo:   cleanErrorInfo(),
	}
}

// Query returns the SQL text as given to Prepare.
func (s *Statement) Query() string { return s.query }

// QueryHash returns the hex xxhash fingerprint of the SQL text.
func (s *Statement) QueryHash() string { return s.hash }

// Kind is "query" for row-returning statements and "exec" otherwise.
func (s *Statement) Kind() string { return s.kind }

// IsNamed reports whether the statement uses :name placeholders.
func (s *Statement) IsNamed() bool { return len(s.compiled.names) > 0 }

// Params returns the bound values in bind order.
func (s *Statement) Params() []interface{} { return s.boundValues() }

// Placeholders returns the named placeholders in order of appearance.
func (s *Statement) Placeholders() []string {
	out := make([]string, len(s.compiled.names))
	copy(out, s.compiled.names)
	return out
}

// ErrorInfo reports the last bind, execute or fetch failure of the statement.
func (s *Statement) ErrorInfo() ErrorInfo { return s.errInfo }

// Columns returns the result column names of the last execution in select
// order, or nil when it returned no rows.
func (s *Statement) Columns() []string {
	if s.columns == nil {
		return nil
	}
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *Statement) bind(name string, value interface{}, typ ParamType) error {
	key := strings.TrimPrefix(strings.TrimSpace(name), ":")

	if s.IsNamed() && !s.declares(key) {
		return s.newError("E_PARAM_UNKNOWN", sqlStateParam,
			fmt.Sprintf("parameter %q is not declared by the statement", key), nil,
			map[string]interface{}{"param": key, "declared": s.compiled.names})
	}

	v, err := typ.Coerce(value)
	if err != nil {
		return s.newError("E_BIND_TYPE", sqlStateGeneral,
			fmt.Sprintf("cannot bind parameter %q as %s", key, typ), err,
			map[string]interface{}{"param": key, "type": typ.String()})
	}

	if _, ok := s.bound[key]; !ok {
		s.order = append(s.order, key)
	}
	s.bound[key] = v
	return nil
}

func (s *Statement) declares(key string) bool {
	for _, p := range s.compiled.names {
		if p == key {
			return true
		}
	}
	return false
}

// args orders the bound values for the driver. Named statements follow the
// placeholder order; positional ones follow bind order.
func (s *Statement) args() ([]interface{}, error) {
	if !s.IsNamed() {
		return s.boundValues(), nil
	}

	args := make([]interface{}, 0, len(s.compiled.names))
	for _, p := range s.compiled.names {
		v, ok := s.bound[p]
		if !ok {
			return nil, s.newError("E_PARAM_MISSING", sqlStateParam,
				fmt.Sprintf("no value bound for parameter %q", p), nil,
				map[string]interface{}{"param": p})
		}
		args = append(args, v)
	}
	return args, nil
}

func (s *Statement) boundValues() []interface{} {
	out := make([]interface{}, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.bound[k])
	}
	return out
}

func (s *Statement) run(ctx context.Context, stmt *sqlx.Stmt) (sql.Result, error) {
	args, err := s.args()
	if err != nil {
		return nil, err
	}

	s.fetched = 0
	s.affected = 0
	s.columns = nil

	if s.kind == kindQuery {
		rows, err := stmt.QueryxContext(ctx, args...)
		if err != nil {
			return nil, s.newError("E_EXECUTE_FAILED", "", "failed to execute statement", err, nil)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return nil, s.newError("E_EXECUTE_FAILED", "", "failed to read result columns", err, nil)
		}
		s.rows = rows
		s.columns = cols
		return nil, nil
	}

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return nil, s.newError("E_EXECUTE_FAILED", "", "failed to execute statement", err, nil)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.affected = n
	}
	return res, nil
}

// next returns the following row, or nil once the cursor is exhausted.
func (s *Statement) next() (Row, error) {
	if s.rows == nil {
		return nil, nil
	}
	if !s.rows.Next() {
		err := s.rows.Err()
		s.closeCursor()
		if err != nil {
			return nil, s.newError("E_FETCH_FAILED", "", "failed to advance cursor", err, nil)
		}
		return nil, nil
	}

	row := make(map[string]interface{}, len(s.columns))
	if err := s.rows.MapScan(row); err != nil {
		return nil, s.newError("E_FETCH_FAILED", "", "failed to scan row", err, nil)
	}
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	s.fetched++
	return Row(row), nil
}

func (s *Statement) nextInto(dest interface{}) (bool, error) {
	if s.rows == nil {
		return false, nil
	}
	if !s.rows.Next() {
		err := s.rows.Err()
		s.closeCursor()
		if err != nil {
			return false, s.newError("E_FETCH_FAILED", "", "failed to advance cursor", err, nil)
		}
		return false, nil
	}
	if err := s.rows.StructScan(dest); err != nil {
		return false, s.newError("E_FETCH_FAILED", "", fmt.Sprintf("failed to scan row into %T", dest), err, nil)
	}
	s.fetched++
	return true, nil
}

func (s *Statement) withPositions(row Row) Row {
	for i, col := range s.columns {
		row[strconv.Itoa(i)] = row[col]
	}
	return row
}

func (s *Statement) rowCount() int64 {
	if s.kind == kindQuery {
		return s.fetched
	}
	return s.affected
}

func (s *Statement) closeCursor() {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
}

func (s *Statement) close() error {
	s.closeCursor()
	if s.stmt == nil {
		return nil
	}
	return s.stmt.Close()
}

func (s *Statement) newError(code, state, message string, cause error, details map[string]interface{}) *StatementError {
	return &StatementError{
		QueryError: QueryError{
			Code:       code,
			Type:       "STATEMENT_ERROR",
			Message:    message,
			Details:    details,
			Query:      s.query,
			Params:     s.boundValues(),
			Cause:      cause,
			StackTrace: captureStackTrace(),
			Timestamp:  time.Now(),
		},
		QueryHash: s.hash,
		SQLState:  state,
	}
}

func queryHash(query string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(query))
}

var (
	rowKeywords = map[string]bool{
		"SELECT":   true,
		"SHOW":     true,
		"WITH":     true,
		"EXPLAIN":  true,
		"DESCRIBE": true,
		"DESC":     true,
		"PRAGMA":   true,
		"VALUES":   true,
		"TABLE":    true,
	}
	returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)
	leadingComment  = regexp.MustCompile(`^(\s+|--[^\n]*\n?|/\*(?s:.*?)\*/|\()+`)
)

// inferStatementKind decides between a cursor and an exec from the leading keyword.
func inferStatementKind(query string) string {
	q := leadingComment.ReplaceAllString(query, "")
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		q = q[:end]
	}
	if rowKeywords[strings.ToUpper(q)] || returningClause.MatchString(query) {
		return kindQuery
	}
	return kindExec
}
