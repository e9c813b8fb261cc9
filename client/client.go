package client

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Client is the connection facade: one database handle, at most one prepared
// statement and an autocommit flag. It is not meant for concurrent use; the
// internal lock only keeps its state consistent.
type Client struct {
	mu sync.Mutex

	db      *sqlx.DB
	tx      *sqlx.Tx
	txID    string
	dialect Dialect
	dsn     string
	info    ConnectionInfo
	opts    Options
	logger  Logger

	autocommit bool
	stmt       *Statement
	lastResult sql.Result
	handleErr  ErrorInfo
	closed     bool

	hooks   []Hook
	hooksMu sync.RWMutex
}

// New resolves data into a DSN, opens a single-connection handle and pings it.
// If opts is nil, default options are used.
func New(ctx context.Context, data ConnectionData, opts *Options) (*Client, error) {
	if opts == nil {
		defaultOpts := DefaultOptions()
		opts = &defaultOpts
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, nil)
	}

	target, err := resolve(data, opts.RequireDBName)
	if err != nil {
		logger.Error("invalid connection data", String("error", FormatError(err, opts.DebugMode)))
		return nil, err
	}

	logger = logger.WithFields(String("driver", target.dialect.Name()))
	logger.Info("opening connection", String("dsn", target.dsn))

	sqlDB, err := sql.Open(target.dialect.DriverName(), target.source)
	if err != nil {
		connErr := &ConnectionError{
			Code:    "E_OPEN_FAILED",
			Type:    "CONNECTION_ERROR",
			Message: "failed to open database handle",
			Details: map[string]interface{}{
				"dsn":    target.dsn,
				"driver": target.dialect.DriverName(),
			},
			Cause:      err,
			StackTrace: captureStackTrace(),
			Timestamp:  time.Now(),
		}
		logger.Error("failed to open connection", String("error", FormatError(connErr, opts.DebugMode)))
		return nil, connErr
	}

	// A single session keeps transactions, LAST_INSERT_ID and in-memory
	// databases on the same connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultOptions().ConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		info := classifyError(target.dialect, err)
		connErr := &ConnectionError{
			Code:    "E_PING_FAILED",
			Type:    "CONNECTION_ERROR",
			Message: "database unreachable",
			Details: map[string]interface{}{
				"dsn":      target.dsn,
				"sqlstate": info.SQLState,
			},
			Cause:      err,
			StackTrace: captureStackTrace(),
			Timestamp:  time.Now(),
		}
		logger.Error("failed to connect", String("error", FormatError(connErr, opts.DebugMode)))
		return nil, connErr
	}

	c := &Client{
		db:         sqlx.NewDb(sqlDB, target.dialect.DriverName()).Unsafe(),
		dialect:    target.dialect,
		dsn:        target.dsn,
		info:       target.info,
		opts:       *opts,
		logger:     logger,
		autocommit: true,
		handleErr:  cleanErrorInfo(),
	}
	c.opts.Logger = logger
	for _, h := range opts.Hooks {
		c.RegisterHook(h)
	}

	logger.Info("connection established", String("err_mode", opts.ErrMode.String()))
	return c, nil
}

// Close releases the statement, rolls back an open transaction and closes the
// handle. Calling Close more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.stmt != nil {
		if err := c.stmt.close(); err != nil {
			c.logger.Warn("failed to close statement", Error("error", err))
		}
		c.stmt = nil
	}

	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil {
			c.logger.Warn("failed to roll back open transaction on close",
				String("tx_id", c.txID),
				Error("error", err))
		}
		c.tx = nil
		c.autocommit = true
	}

	err := c.db.Close()
	if err != nil {
		c.logger.Error("error closing handle", Error("error", err))
	} else {
		c.logger.Info("connection closed")
	}
	return err
}

// Prepare compiles query into the current statement, replacing and closing the
// previous one, then binds params in order. Named placeholders (:name) are
// resolved by name; otherwise values go to positional placeholders in bind order.
func (c *Client) Prepare(ctx context.Context, query string, params ...Param) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed("Prepare")
	}

	if c.stmt != nil {
		if err := c.stmt.close(); err != nil {
			c.logger.Debug("previous statement close failed", Error("error", err))
		}
		c.stmt = nil
	}

	hc := newHookContext(OpPrepare, query)
	if err := c.runBefore(ctx, hc); err != nil {
		return err
	}
	query = hc.Query

	cq, err := compileQuery(query, c.dialect.DriverName())
	var (
		prepared *sqlx.Stmt
		owner    *sqlx.Tx
	)
	if err == nil {
		prepared, owner, err = c.prepareOn(ctx, cq.sql)
	}
	if err != nil {
		state := ""
		if errors.Is(err, errMixedPlaceholders) {
			state = sqlStateParam
		}
		stmtErr := &StatementError{
			QueryError: QueryError{
				Code:       "E_PREPARE_FAILED",
				Type:       "STATEMENT_ERROR",
				Message:    "failed to prepare statement",
				Query:      query,
				Cause:      err,
				StackTrace: captureStackTrace(),
				Timestamp:  time.Now(),
			},
			QueryHash: queryHash(query),
			SQLState:  state,
		}
		return c.fail(scopeHandle, "prepare", c.runAfter(ctx, hc, stmtErr))
	}

	c.stmt = newStatement(query, cq, prepared, owner)
	c.handleErr = cleanErrorInfo()
	c.logger.Debug("statement prepared",
		String("query_hash", c.stmt.hash),
		String("kind", c.stmt.kind),
		Int("placeholders", len(cq.names)+cq.positional),
		String("trace_id", hc.TraceID))

	if err := c.runAfter(ctx, hc, nil); err != nil {
		return c.fail(scopeHandle, "prepare", err)
	}

	for _, p := range params {
		if err := c.stmt.bind(p.Name, p.Value, ParseParamType(p.Type)); err != nil {
			return c.fail(scopeStatement, "bind", err)
		}
	}
	return nil
}

// prepareOn prepares compiled SQL on the open transaction when there is one.
func (c *Client) prepareOn(ctx context.Context, query string) (*sqlx.Stmt, *sqlx.Tx, error) {
	if c.tx != nil {
		stmt, err := c.tx.PreparexContext(ctx, query)
		return stmt, c.tx, err
	}
	stmt, err := c.db.PreparexContext(ctx, query)
	return stmt, nil, err
}

// Bind coerces value to the type named by typeTag ("null", "bool", "int",
// "str"; anything else is "str") and binds it under name. Binding before
// Prepare fails with an E_NO_ACTIVE_STATEMENT StateError regardless of ErrMode.
func (c *Client) Bind(name string, value interface{}, typeTag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed("Bind")
	}
	if c.stmt == nil {
		return ErrNoActiveStatement("Bind")
	}
	return c.fail(scopeStatement, "bind", c.stmt.bind(name, value, ParseParamType(typeTag)))
}

// Execute runs the current statement. Without a statement it does nothing.
// Row-returning statements leave an open cursor for the Fetch family; the
// cursor lives as long as ctx.
func (c *Client) Execute(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed("Execute")
	}
	st := c.stmt
	if st == nil {
		return nil
	}
	st.closeCursor()

	hc := newHookContext(OpExecute, st.query)
	hc.Params = st.boundValues()
	if err := c.runBefore(ctx, hc); err != nil {
		return err
	}

	stmt, err := c.statementFor(ctx, st)
	var res sql.Result
	if err == nil {
		res, err = st.run(ctx, stmt)
	}
	if res != nil {
		c.lastResult = res
	}
	hc.RowsAffected = st.affected

	err = c.runAfter(ctx, hc, err)
	if err == nil {
		c.logger.Debug("statement executed",
			String("query_hash", st.hash),
			String("kind", st.kind),
			Int64("rows_affected", st.affected),
			String("trace_id", hc.TraceID))
	}
	return c.fail(scopeStatement, "execute", err)
}

// statementFor returns st bound to the session it must run on. Statements
// prepared on the handle are re-bound to an open transaction; statements
// prepared inside a finished transaction are prepared again.
func (c *Client) statementFor(ctx context.Context, st *Statement) (*sqlx.Stmt, error) {
	switch {
	case st.owner == c.tx:
		return st.stmt, nil
	case st.owner == nil:
		// Stmtx drops the unsafe flag of the handle.
		return c.tx.StmtxContext(ctx, st.stmt).Unsafe(), nil
	default:
		stmt, owner, err := c.prepareOn(ctx, st.compiled.sql)
		if err != nil {
			return nil, st.newError("E_PREPARE_FAILED", "", "failed to re-prepare statement after transaction end", err, nil)
		}
		st.stmt.Close()
		st.stmt = stmt
		st.owner = owner
		return stmt, nil
	}
}

// Fetch returns the next row, or nil when there is no statement, no open
// cursor or no more rows.
func (c *Client) Fetch() (Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.stmt == nil {
		return nil, nil
	}
	row, err := c.stmt.next()
	if err != nil {
		return nil, c.fail(scopeStatement, "fetch", err)
	}
	return row, nil
}

// FetchObject scans the next row into dest, a pointer to a struct whose
// fields carry `db` tags. Columns without a matching field are skipped. It
// returns false when there is no statement or no more rows.
func (c *Client) FetchObject(dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.stmt == nil {
		return false, nil
	}
	ok, err := c.stmt.nextInto(dest)
	if err != nil {
		return false, c.fail(scopeStatement, "fetch", err)
	}
	return ok, nil
}

// FetchAll drains the cursor. The result is empty, never nil, when there is
// no statement. FetchAssoc is the default mode.
func (c *Client) FetchAll(mode ...FetchMode) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := make([]Row, 0)
	if c.closed || c.stmt == nil {
		return rows, nil
	}

	both := len(mode) > 0 && mode[0] == FetchBoth
	for {
		row, err := c.stmt.next()
		if err != nil {
			return rows, c.fail(scopeStatement, "fetch", err)
		}
		if row == nil {
			return rows, nil
		}
		if both {
			row = c.stmt.withPositions(row)
		}
		rows = append(rows, row)
	}
}

// Statement returns the current statement, or nil before the first Prepare.
func (c *Client) Statement() *Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stmt
}

// ErrorInfo reports the last error of the configured source. With
// ErrorInfoFromStatement it is nil until a statement has been prepared.
func (c *Client) ErrorInfo() *ErrorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.ErrorInfoSource == ErrorInfoFromStatement {
		if c.stmt == nil {
			return nil
		}
		info := c.stmt.errInfo
		return &info
	}
	info := c.handleErr
	return &info
}

// ErrorExists reports whether ErrorInfo carries a driver code.
func (c *Client) ErrorExists() bool {
	info := c.ErrorInfo()
	return info != nil && info.HasError()
}

// LastInsertID returns the id generated by the last executed statement.
// A zero id is reported as absent.
func (c *Client) LastInsertID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastResult == nil {
		return 0, false
	}
	id, err := c.lastResult.LastInsertId()
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// RowCount returns the rows affected by the last exec, or the rows fetched so
// far from a cursor. It is 0 without a statement.
func (c *Client) RowCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stmt == nil {
		return 0
	}
	return c.stmt.rowCount()
}

// DSN returns the password-free connection string.
func (c *Client) DSN() string { return c.dsn }

// ConnectionData returns the password-free connection record.
func (c *Client) ConnectionData() ConnectionInfo { return c.info }

func (c *Client) DBName() string { return c.info.DBName }
func (c *Client) Driver() string { return c.info.Driver }
func (c *Client) Host() string   { return c.info.Host }
func (c *Client) Port() string   { return c.info.Port }

type errorScope int

const (
	scopeHandle errorScope = iota
	scopeStatement
)

// fail records err in the error info of scope and decides, from the error
// mode, whether the caller sees it. A nil err records a clean state.
func (c *Client) fail(scope errorScope, op string, err error) error {
	info := classifyError(c.dialect, err)
	switch scope {
	case scopeHandle:
		c.handleErr = info
	case scopeStatement:
		if c.stmt != nil {
			c.stmt.errInfo = info
		}
	}

	if err == nil {
		return nil
	}

	c.logger.Error(op+" failed",
		String("sqlstate", info.SQLState),
		String("error", FormatError(err, c.opts.DebugMode)))

	if c.opts.ErrMode == ErrModeSilent {
		return nil
	}
	return err
}
