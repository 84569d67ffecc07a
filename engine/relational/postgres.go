package relational

import (
	"strconv"
	"strings"

	"github.com/qoredb/core/model"
)

// postgresDialect implements Dialect for PostgreSQL, using the lib/pq
// driver registered under "postgres".
type postgresDialect struct{}

func (postgresDialect) DriverId() string      { return "postgres" }
func (postgresDialect) SQLDriverName() string { return "postgres" }
func (postgresDialect) QuoteChar() byte       { return '"' }

func (postgresDialect) Placeholder(i int) string { return "$" + strconv.Itoa(i) }

func (postgresDialect) BuildDSN(cfg model.ConnectionConfig) (string, error) {
	sslmode := "disable"
	if cfg.SSL {
		sslmode = "require"
	}
	parts := []string{
		"host=" + pqEscape(cfg.Host),
		"port=" + strconv.Itoa(cfg.Port),
		"user=" + pqEscape(cfg.Username),
		"password=" + pqEscape(cfg.Password),
		"sslmode=" + sslmode,
	}
	if cfg.Database != "" {
		parts = append(parts, "dbname="+pqEscape(cfg.Database))
	}
	return strings.Join(parts, " "), nil
}

// pqEscape wraps a libpq connection-string value in single quotes,
// escaping embedded quotes and backslashes, per the keyword=value DSN
// format lib/pq expects.
func pqEscape(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (postgresDialect) CaptureBackendIDStmt() string { return "SELECT pg_backend_pid()" }

func (postgresDialect) CancelStmt(backendID int64) (string, []any) {
	return "SELECT pg_terminate_backend($1)", []any{backendID}
}

// NewPostgresDriver returns the Driver implementation for the "postgres" tag.
func NewPostgresDriver() *Base {
	return NewBase(postgresDialect{})
}
