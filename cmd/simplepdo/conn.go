package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/LuisaeDev/SimplePDO/client"
)

// connFlags are the connection options shared by every command.
type connFlags struct {
	dsn      *string
	driver   *string
	host     *string
	port     *string
	dbname   *string
	user     *string
	password *string
	template *string
	logLevel *string
	silent   *bool
	debug    *bool
}

func registerConnFlags(fs *flag.FlagSet) *connFlags {
	return &connFlags{
		dsn:      fs.String("dsn", os.Getenv("SIMPLEPDO_DSN"), "Prebuilt connection string, e.g. sqlite::memory:"),
		driver:   fs.String("driver", os.Getenv("SIMPLEPDO_DRIVER"), "Driver: mysql, pgsql or sqlite"),
		host:     fs.String("host", os.Getenv("SIMPLEPDO_HOST"), "Database host"),
		port:     fs.String("port", os.Getenv("SIMPLEPDO_PORT"), "Database port"),
		dbname:   fs.String("dbname", os.Getenv("SIMPLEPDO_DBNAME"), "Database name"),
		user:     fs.String("user", os.Getenv("SIMPLEPDO_USER"), "Database user"),
		password: fs.String("password", os.Getenv("SIMPLEPDO_PASSWORD"), "Database password"),
		template: fs.String("template", "", "DSN template with $driver $host $port $dbname $user $password"),
		logLevel: fs.String("log-level", envOr("SIMPLEPDO_LOG_LEVEL", "WARN"), "Log level"),
		silent:   fs.Bool("silent", false, "Record statement errors instead of failing"),
		debug:    fs.Bool("debug", false, "Verbose errors with stack traces"),
	}
}

func (f *connFlags) connectionData() client.ConnectionData {
	if *f.dsn != "" {
		return client.DSN(*f.dsn)
	}
	return client.Params{
		DBName:      *f.dbname,
		User:        *f.user,
		Password:    *f.password,
		Driver:      *f.driver,
		Host:        *f.host,
		Port:        *f.port,
		DSNTemplate: *f.template,
	}
}

func (f *connFlags) options() *client.Options {
	opts := client.DefaultOptions()
	opts.LogLevel = *f.logLevel
	opts.DebugMode = *f.debug
	if *f.silent {
		opts.ErrMode = client.ErrModeSilent
		opts.ErrorInfoSource = client.ErrorInfoFromStatement
	}
	return &opts
}

func (f *connFlags) connect(ctx context.Context) *client.Client {
	c, err := client.New(ctx, f.connectionData(), f.options())
	if err != nil {
		printError(fmt.Sprintf("Connection failed: %s", client.FormatError(err, *f.debug)))
		os.Exit(1)
	}
	return c
}

// paramFlags collects repeatable -p name=value[:type] arguments.
type paramFlags []client.Param

func (p *paramFlags) String() string {
	parts := make([]string, len(*p))
	for i, param := range *p {
		parts[i] = fmt.Sprintf("%s=%v:%s", param.Name, param.Value, param.Type)
	}
	return strings.Join(parts, ",")
}

func (p *paramFlags) Set(s string) error {
	param, err := parseParam(s)
	if err != nil {
		return err
	}
	*p = append(*p, param)
	return nil
}

// parseParam reads name=value[:type]. The suffix is only taken as a type when
// it is one of the known tags, so values may contain colons. The value of a
// null parameter is nil.
func parseParam(s string) (client.Param, error) {
	name, rest, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return client.Param{}, fmt.Errorf("parameter %q is not name=value[:type]", s)
	}

	value, typ := rest, "str"
	if i := strings.LastIndexByte(rest, ':'); i >= 0 {
		switch tag := strings.ToLower(rest[i+1:]); tag {
		case "null", "bool", "int", "str":
			value, typ = rest[:i], tag
		}
	}

	param := client.Param{Name: name, Value: value, Type: typ}
	if typ == "null" {
		param.Value = nil
	}
	return param, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
