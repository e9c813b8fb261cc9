package client

import (
	"strings"
)

const (
	DefaultUser   = "root"
	DefaultDriver = "mysql"
	DefaultHost   = "127.0.0.1"
	DefaultPort   = "3306"
)

// ConnectionData is what New accepts: either a Params record or a prebuilt DSN.
type ConnectionData interface {
	connectionData()
}

// Params is the structured form of connection data. Empty fields take the
// package defaults, except DBName which stays empty unless Options.RequireDBName
// rejects it.
type Params struct {
	DBName   string
	User     string
	Password string
	Driver   string
	Host     string
	Port     string

	// DSNTemplate overrides the driver's default template. Recognised
	// placeholders: $driver $host $port $dbname $user $password.
	DSNTemplate string
}

func (Params) connectionData() {}

// DSN is an opaque, prebuilt connection string such as
// "mysql:host=db;port=3306;dbname=app" or "sqlite::memory:".
type DSN string

func (DSN) connectionData() {}

// ConnectionInfo is the retained connection record. It never carries the password.
type ConnectionInfo struct {
	DBName      string
	User        string
	Driver      string
	Host        string
	Port        string
	DSNTemplate string
}

// WithDefaults returns a copy of p with every empty field except DBName,
// Password and DSNTemplate set to its default.
func (p Params) WithDefaults() Params {
	if p.User == "" {
		p.User = DefaultUser
	}
	if p.Driver == "" {
		p.Driver = DefaultDriver
	}
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.Port == "" {
		p.Port = DefaultPort
	}
	return p
}

// DSN returns the password-free connection string New would store for p.
func (p Params) DSN() (string, error) {
	p = p.WithDefaults()
	tmpl, err := templateFor(p)
	if err != nil {
		return "", err
	}
	p.Password = ""
	return BuildDSN(tmpl, p), nil
}

// placeholders lists template variables in substitution order.
var placeholders = []string{"$driver", "$host", "$port", "$dbname", "$user", "$password"}

// BuildDSN substitutes each placeholder of template with the matching field
// of p, one literal replacement pass per placeholder, in the order
// $driver, $host, $port, $dbname, $user, $password.
func BuildDSN(template string, p Params) string {
	values := []string{p.Driver, p.Host, p.Port, p.DBName, p.User, p.Password}
	dsn := template
	for i, ph := range placeholders {
		dsn = strings.ReplaceAll(dsn, ph, values[i])
	}
	return dsn
}

func templateFor(p Params) (string, error) {
	if p.DSNTemplate != "" {
		return p.DSNTemplate, nil
	}
	d, ok := lookupDialect(p.Driver)
	if !ok {
		return "", ErrDriverNotSupported(p.Driver)
	}
	return d.DefaultTemplate(), nil
}

// parsedDSN is a "driver:body" connection string split at the first colon.
type parsedDSN struct {
	driver string
	body   string
}

func parseDSN(s string) (parsedDSN, error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return parsedDSN{}, ErrInvalidDSN("", "missing driver prefix")
	}
	return parsedDSN{driver: strings.TrimSpace(s[:idx]), body: s[idx+1:]}, nil
}

// attrs splits the body as semicolon-separated key=value pairs. Parts
// without '=' are ignored. Keys are lower-cased.
func (d parsedDSN) attrs() map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(d.body, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// withoutPassword rebuilds the connection string without its password attribute.
func (d parsedDSN) withoutPassword() string {
	if !strings.Contains(d.body, "=") {
		return d.driver + ":" + d.body
	}
	kept := make([]string, 0)
	for _, part := range strings.Split(d.body, ";") {
		k, _, _ := strings.Cut(strings.TrimSpace(part), "=")
		if strings.EqualFold(strings.TrimSpace(k), "password") {
			continue
		}
		kept = append(kept, part)
	}
	return d.driver + ":" + strings.Join(kept, ";")
}

// StripPassword removes the password attribute from a "driver:body" connection
// string, giving the form Client.DSN reports.
func StripPassword(dsn string) (string, error) {
	parsed, err := parseDSN(dsn)
	if err != nil {
		return "", err
	}
	return parsed.withoutPassword(), nil
}

// connectTarget is connection data resolved against a dialect.
type connectTarget struct {
	dialect Dialect
	dsn     string // stored, password-free
	source  string // native data source handed to sql.Open
	info    ConnectionInfo
}

func resolve(data ConnectionData, requireDBName bool) (connectTarget, error) {
	switch d := data.(type) {
	case Params:
		return resolveParams(d, requireDBName)
	case *Params:
		if d == nil {
			return connectTarget{}, ErrInvalidDSN("", "no connection data")
		}
		return resolveParams(*d, requireDBName)
	case DSN:
		return resolveDSN(string(d))
	default:
		return connectTarget{}, ErrInvalidDSN("", "no connection data")
	}
}

func resolveParams(p Params, requireDBName bool) (connectTarget, error) {
	p = p.WithDefaults()
	if requireDBName && p.DBName == "" {
		return connectTarget{}, ErrDBNameRequired()
	}
	if _, ok := lookupDialect(p.Driver); !ok {
		return connectTarget{}, ErrDriverNotSupported(p.Driver)
	}

	tmpl, err := templateFor(p)
	if err != nil {
		return connectTarget{}, err
	}

	full := BuildDSN(tmpl, p)
	stripped := p
	stripped.Password = ""
	stored := BuildDSN(tmpl, stripped)

	parsed, err := parseDSN(full)
	if err != nil {
		return connectTarget{}, ErrInvalidDSN(stored, "template does not start with a driver prefix")
	}
	dialect, ok := lookupDialect(parsed.driver)
	if !ok {
		return connectTarget{}, ErrDriverNotSupported(parsed.driver)
	}

	source, err := dialect.DataSource(parsed, p.User, p.Password)
	if err != nil {
		return connectTarget{}, err
	}

	return connectTarget{
		dialect: dialect,
		dsn:     stored,
		source:  source,
		info: ConnectionInfo{
			DBName:      p.DBName,
			User:        p.User,
			Driver:      p.Driver,
			Host:        p.Host,
			Port:        p.Port,
			DSNTemplate: tmpl,
		},
	}, nil
}

func resolveDSN(raw string) (connectTarget, error) {
	parsed, err := parseDSN(raw)
	if err != nil {
		return connectTarget{}, err
	}
	dialect, ok := lookupDialect(parsed.driver)
	if !ok {
		return connectTarget{}, ErrDriverNotSupported(parsed.driver)
	}

	attrs := parsed.attrs()
	source, err := dialect.DataSource(parsed, attrs["user"], attrs["password"])
	if err != nil {
		return connectTarget{}, err
	}

	info := ConnectionInfo{
		Driver: parsed.driver,
		User:   attrs["user"],
		Host:   attrs["host"],
		Port:   attrs["port"],
		DBName: attrs["dbname"],
	}
	if !strings.Contains(parsed.body, "=") {
		info.DBName = parsed.body
	}

	return connectTarget{
		dialect: dialect,
		dsn:     parsed.withoutPassword(),
		source:  source,
		info:    info,
	}, nil
}
