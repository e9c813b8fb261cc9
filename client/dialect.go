package client

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// Dialect adapts one connection-string prefix to a database/sql driver.
type Dialect interface {
	// Name is the connection-string prefix, e.g. "mysql".
	Name() string

	// DriverName is the name registered with database/sql.
	DriverName() string

	// DefaultTemplate is used when Params.DSNTemplate is empty.
	DefaultTemplate() string

	// DataSource converts the connection string into the driver's native form.
	DataSource(dsn parsedDSN, user, password string) (string, error)

	// ErrorInfo extracts SQLSTATE, driver code and message from a driver error.
	// ok is false when err does not originate from this driver.
	ErrorInfo(err error) (info ErrorInfo, ok bool)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)

	RegisterDialect(mysqlDialect{})
	RegisterDialect(pgsqlDialect{})
	RegisterDialect(sqliteDialect{})
}

// RegisterDialect makes a dialect available under its Name, replacing any previous one.
func RegisterDialect(d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[d.Name()] = d
}

// SupportedDrivers returns the registered connection-string prefixes, sorted.
func SupportedDrivers() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()

	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupDialect(name string) (Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// mysqlDialect targets github.com/go-sql-driver/mysql.
type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }
func (mysqlDialect) DefaultTemplate() string {
	return "$driver:host=$host;port=$port;dbname=$dbname;charset=utf8"
}

func (mysqlDialect) DataSource(dsn parsedDSN, user, password string) (string, error) {
	attrs := dsn.attrs()

	cfg := mysql.NewConfig()
	cfg.User = firstNonEmpty(attrs["user"], user)
	cfg.Passwd = firstNonEmpty(attrs["password"], password)
	cfg.DBName = attrs["dbname"]

	if socket := attrs["unix_socket"]; socket != "" {
		cfg.Net = "unix"
		cfg.Addr = socket
	} else {
		port := firstNonEmpty(attrs["port"], DefaultPort)
		if _, err := strconv.Atoi(port); err != nil {
			return "", ErrInvalidDSN(dsn.withoutPassword(), fmt.Sprintf("port %q is not numeric", port))
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(firstNonEmpty(attrs["host"], DefaultHost), port)
	}

	src := cfg.FormatDSN()
	if charset := attrs["charset"]; charset != "" {
		// The driver only treats charset specially when it is parsed from a DSN.
		sep := "?"
		if strings.Contains(src[strings.LastIndexByte(src, '/'):], "?") {
			sep = "&"
		}
		src += sep + "charset=" + url.QueryEscape(charset)
		if _, err := mysql.ParseDSN(src); err != nil {
			return "", ErrInvalidDSN(dsn.withoutPassword(), err.Error())
		}
	}
	return src, nil
}

func (mysqlDialect) ErrorInfo(err error) (ErrorInfo, bool) {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return ErrorInfo{}, false
	}
	state := string(myErr.SQLState[:])
	if strings.Trim(state, "\x00") == "" {
		state = sqlStateGeneral
	}
	return newErrorInfo(state, int64(myErr.Number), myErr.Message), true
}

// pgsqlDialect targets github.com/lib/pq.
type pgsqlDialect struct{}

func (pgsqlDialect) Name() string            { return "pgsql" }
func (pgsqlDialect) DriverName() string      { return "postgres" }
func (pgsqlDialect) DefaultTemplate() string { return "$driver:host=$host;port=$port;dbname=$dbname" }

// pqFatalError is the libpq result status reported as the driver code for
// every server error.
const pqFatalError = 7

func (pgsqlDialect) DataSource(dsn parsedDSN, user, password string) (string, error) {
	attrs := dsn.attrs()
	if user != "" {
		if _, ok := attrs["user"]; !ok {
			attrs["user"] = user
		}
	}
	if password != "" {
		if _, ok := attrs["password"]; !ok {
			attrs["password"] = password
		}
	}
	if port, ok := attrs["port"]; ok {
		if _, err := strconv.Atoi(port); err != nil {
			return "", ErrInvalidDSN(dsn.withoutPassword(), fmt.Sprintf("port %q is not numeric", port))
		}
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if attrs[k] == "" {
			continue
		}
		parts = append(parts, k+"="+quoteConnInfo(attrs[k]))
	}
	return strings.Join(parts, " "), nil
}

func (pgsqlDialect) ErrorInfo(err error) (ErrorInfo, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ErrorInfo{}, false
	}
	return newErrorInfo(string(pqErr.Code), pqFatalError, pqErr.Message), true
}

// quoteConnInfo quotes a libpq conninfo value when it needs it.
func quoteConnInfo(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// sqliteDialect targets modernc.org/sqlite. The body after "sqlite:" is the
// database path, ":memory:" or a file: URI.
type sqliteDialect struct{}

func (sqliteDialect) Name() string            { return "sqlite" }
func (sqliteDialect) DriverName() string      { return "sqlite" }
func (sqliteDialect) DefaultTemplate() string { return "$driver:$dbname" }

func (sqliteDialect) DataSource(dsn parsedDSN, _, _ string) (string, error) {
	path := strings.TrimSpace(dsn.body)
	if path == "" {
		return "", ErrInvalidDSN(dsn.withoutPassword(), "sqlite needs a database path or :memory:")
	}
	return path, nil
}

func (sqliteDialect) ErrorInfo(err error) (ErrorInfo, bool) {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return ErrorInfo{}, false
	}
	return newErrorInfo(sqlStateGeneral, int64(liteErr.Code()), liteErr.Error()), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
