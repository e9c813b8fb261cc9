package client

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// errMixedPlaceholders is returned for statements using both :name and ? placeholders.
var errMixedPlaceholders = errors.New("mixed named and positional parameters")

// compiledQuery is a statement's SQL rewritten to the driver's bindvar syntax.
type compiledQuery struct {
	sql        string
	names      []string // named placeholders in order of appearance
	positional int
}

var dollarTag = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z_0-9]*)?\$`)

// compileQuery finds :name and ? placeholders outside quoted text and comments
// and rewrites them for driverName. A '::' cast and ':=' are left alone.
func compileQuery(query, driverName string) (compiledQuery, error) {
	bindType := sqlx.BindType(driverName)
	backslash := driverName == "mysql"

	var (
		out strings.Builder
		cq  compiledQuery
		n   int
	)
	out.Grow(len(query) + 8)

	bindvar := func(name string) {
		n++
		switch bindType {
		case sqlx.DOLLAR:
			out.WriteString("$" + strconv.Itoa(n))
		case sqlx.AT:
			out.WriteString("@p" + strconv.Itoa(n))
		case sqlx.NAMED:
			if name == "" {
				name = "p" + strconv.Itoa(n)
			}
			out.WriteString(":" + name)
		default:
			out.WriteByte('?')
		}
	}

	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(query, i, backslash && c != '`')
			out.WriteString(query[i:j])
			i = j

		case c == '-' && strings.HasPrefix(query[i:], "--"):
			j := strings.IndexByte(query[i:], '\n')
			if j < 0 {
				j = len(query) - i
			}
			out.WriteString(query[i : i+j])
			i += j

		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			j := strings.Index(query[i+2:], "*/")
			end := len(query)
			if j >= 0 {
				end = i + 2 + j + 2
			}
			out.WriteString(query[i:end])
			i = end

		case c == '$' && bindType == sqlx.DOLLAR && dollarTag.MatchString(query[i:]):
			tag := dollarTag.FindString(query[i:])
			j := strings.Index(query[i+len(tag):], tag)
			end := len(query)
			if j >= 0 {
				end = i + len(tag) + j + len(tag)
			}
			out.WriteString(query[i:end])
			i = end

		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			out.WriteString("::")
			i += 2

		case c == ':' && i+1 < len(query) && isNameByte(query[i+1]):
			j := i + 1
			for j < len(query) && isNameByte(query[j]) {
				j++
			}
			name := query[i+1 : j]
			cq.names = append(cq.names, name)
			bindvar(name)
			i = j

		case c == '?':
			cq.positional++
			bindvar("")
			i++

		default:
			out.WriteByte(c)
			i++
		}
	}

	if len(cq.names) > 0 && cq.positional > 0 {
		return compiledQuery{}, errMixedPlaceholders
	}
	cq.sql = out.String()
	return cq, nil
}

// skipQuoted returns the index just past the quoted run starting at start.
// A doubled quote is an escaped quote. Unterminated text runs to the end.
func skipQuoted(s string, start int, backslash bool) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if backslash {
				i++
			}
		case q:
			if i+1 < len(s) && s[i+1] == q {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(s)
}

func isNameByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
