package relational

import (
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/qoredb/core/model"
)

// mysqlDialect implements Dialect for MySQL/MariaDB, using the
// go-sql-driver/mysql driver registered under "mysql".
type mysqlDialect struct{}

func (mysqlDialect) DriverId() string      { return "mysql" }
func (mysqlDialect) SQLDriverName() string { return "mysql" }
func (mysqlDialect) QuoteChar() byte       { return '`' }

// Placeholder is ignored in the rendered string: go-sql-driver/mysql
// uses positional "?" regardless of index.
func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) BuildDSN(cfg model.ConnectionConfig) (string, error) {
	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.DBName = cfg.Database
	c.ParseTime = true
	if cfg.SSL {
		c.TLSConfig = "true"
	}
	return c.FormatDSN(), nil
}

func (mysqlDialect) CaptureBackendIDStmt() string { return "SELECT CONNECTION_ID()" }

func (mysqlDialect) CancelStmt(backendID int64) (string, []any) {
	return "KILL QUERY " + strconv.FormatInt(backendID, 10), nil
}

// NewMySQLDriver returns the Driver implementation for the "mysql" tag.
func NewMySQLDriver() *Base {
	return NewBase(mysqlDialect{})
}
