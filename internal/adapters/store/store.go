// Package store implements core.CallStore over memory, SQLite and PostgreSQL.
package store

import (
	"fmt"

	"github.com/maloy23073-dotcom/PP1-telegram-bot/internal/core"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store for driver. dsn is a file path for sqlite and a
// connection string for postgres; memory ignores it.
func Open(driver, dsn string) (core.CallStore, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
