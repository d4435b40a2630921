package storage

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// buildPostgresDSN constructs a Postgres connection string from a Connection.
func buildPostgresDSN(c Connection) string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.Username, c.Password, c.Database, sslMode,
	)
}

// isPostgresConstraint matches class 23 (integrity constraint violation).
func isPostgresConstraint(err error) bool {
	var e *pq.Error
	return errors.As(err, &e) && e.Code.Class() == "23"
}
