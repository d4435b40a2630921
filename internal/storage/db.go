// Package storage owns the relational artifact: connections per driver, the
// SQL dialect of the tags table, and the transactional tag store.
package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Driver represents the type of database engine.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
)

// Connection holds what is needed to reach the relational artifact.
// For sqlite only Path is used. DSN, when set, overrides the server fields.
type Connection struct {
	Driver   Driver `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"-"`
	SSLMode  string `json:"sslMode"`
	DSN      string `json:"-"`
}

// dsn returns the driver-specific data source name.
func (c Connection) dsn() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverMySQL:
		return buildMySQLDSN(c), nil
	case DriverPostgres:
		return buildPostgresDSN(c), nil
	}
	return "", fmt.Errorf("unsupported driver: %s", c.Driver)
}

// DB wraps the database connection and its dialect.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// Open connects to the database described by c. For sqlite the file is
// created when missing.
func Open(c Connection) (*DB, error) {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	dialect, err := DialectFor(c.Driver)
	if err != nil {
		return nil, err
	}

	var conn *sql.DB
	if c.Driver == DriverSQLite {
		conn, err = openSQLite(c.Path)
	} else {
		conn, err = openServer(c)
	}
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, dialect: dialect}, nil
}

func openServer(c Connection) (*sql.DB, error) {
	dsn, err := c.dsn()
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(string(c.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Driver, err)
	}
	// A build holds one transaction at a time.
	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(10 * time.Minute)
	return conn, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// IsConstraintViolation reports whether err is a primary-key or unique
// constraint failure from any supported driver.
func IsConstraintViolation(err error) bool {
	return isSQLiteConstraint(err) || isMySQLConstraint(err) || isPostgresConstraint(err)
}
