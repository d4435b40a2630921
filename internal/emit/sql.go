package emit

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tagc/internal/domain"
	"tagc/internal/storage"
)

// ── SQL Target ─────────────────────────────────────────────
// Rebuilds the tags table in one transaction: drop, create, insert in
// table order, commit. MySQL fills a staging table and renames it in. SQLite files are the default artifact; MySQL and
// Postgres servers are reachable through the same dialect-aware store.

type sqlTarget struct{}

func init() { RegisterTarget(&sqlTarget{}) }

func (t *sqlTarget) Spec() TargetSpec {
	return TargetSpec{
		Type:      "sql",
		Label:     "Relational table",
		Extension: ".db",
		ConfigFields: []ConfigField{
			{Key: "driver", Label: "Driver", Type: "select", Default: "sqlite", Help: "sqlite | mysql | postgres"},
			{Key: "output", Label: "Output", Type: "string", Help: "SQLite database file (sqlite driver)"},
			{Key: "dsn", Label: "DSN", Type: "string", Help: "Full data source name; overrides host/port/database/user"},
			{Key: "host", Label: "Host", Type: "string"},
			{Key: "port", Label: "Port", Type: "int"},
			{Key: "database", Label: "Database", Type: "string"},
			{Key: "user", Label: "User", Type: "string"},
			{Key: "password", Label: "Password", Type: "string"},
			{Key: "sslmode", Label: "SSL mode", Type: "string", Default: "disable"},
		},
	}
}

// connectionFromConfig maps a target config onto a storage connection.
func connectionFromConfig(cfg TargetConfig) (storage.Connection, error) {
	c := storage.Connection{
		Driver:   storage.Driver(cfg.String("driver", string(storage.DriverSQLite))),
		Path:     cfg.String("output", ""),
		DSN:      cfg.String("dsn", ""),
		Host:     cfg.String("host", ""),
		Port:     cfg.Int("port", 0),
		Database: cfg.String("database", ""),
		Username: cfg.String("user", ""),
		Password: cfg.String("password", ""),
		SSLMode:  cfg.String("sslmode", ""),
	}
	if _, err := storage.DialectFor(c.Driver); err != nil {
		return c, fmt.Errorf("sql: %w", err)
	}
	if c.Driver == storage.DriverSQLite && c.Path == "" {
		return c, fmt.Errorf("sql: output is required")
	}
	return c, nil
}

// artifactPath names the relational artifact for logs and errors.
func artifactPath(c storage.Connection) string {
	if c.Driver == storage.DriverSQLite {
		return c.Path
	}
	if c.DSN != "" {
		return string(c.Driver) + "://(dsn)"
	}
	return fmt.Sprintf("%s://%s/%s", c.Driver, c.Host, c.Database)
}

func (t *sqlTarget) Emit(ctx context.Context, _ Env, cfg TargetConfig, table *domain.Table) (*Artifact, error) {
	c, err := connectionFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	n, err := replaceTags(ctx, c, table.All())
	if err != nil {
		return nil, err
	}
	return &Artifact{Target: "sql", Path: artifactPath(c), Count: n}, nil
}

// replaceTags writes tags through a fresh connection and returns the row
// count of the rebuilt table. A SQLite file created by a failed call is
// removed again so no half-made artifact remains.
func replaceTags(ctx context.Context, c storage.Connection, tags []domain.Tag) (n int, err error) {
	path := artifactPath(c)
	created := false
	if c.Driver == storage.DriverSQLite {
		if _, statErr := os.Stat(c.Path); errors.Is(statErr, os.ErrNotExist) {
			created = true
		}
	}

	db, err := storage.Open(c)
	if err != nil {
		return 0, domain.IOError("sql", path, err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = domain.IOError("sql", path, cerr)
		}
		if err != nil && created {
			_ = os.Remove(c.Path)
			_ = os.Remove(c.Path + "-journal")
		}
	}()

	store := storage.NewTagStore(db)
	if err := store.ReplaceAll(ctx, tags); err != nil {
		var cerr *storage.ConstraintError
		if errors.As(err, &cerr) {
			return 0, &domain.Error{
				Kind:   domain.KindConstraintViolation,
				Target: "sql",
				Path:   path,
				Code:   cerr.Code,
				Err:    cerr.Err,
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, domain.IOError("sql", path, err)
	}

	n, err = store.Count(ctx)
	if err != nil {
		return 0, domain.IOError("sql", path, err)
	}
	if n != len(tags) {
		return 0, domain.IOError("sql", path, fmt.Errorf("wrote %d rows, want %d", n, len(tags)))
	}
	return n, nil
}

func (t *sqlTarget) Read(ctx context.Context, _ Env, cfg TargetConfig) ([]domain.Tag, error) {
	c, err := connectionFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	path := artifactPath(c)
	if c.Driver == storage.DriverSQLite {
		// Reading must not create an empty database file.
		if _, err := os.Stat(c.Path); err != nil {
			return nil, domain.IOError("sql", path, err)
		}
	}

	db, err := storage.Open(c)
	if err != nil {
		return nil, domain.IOError("sql", path, err)
	}
	defer db.Close()

	store := storage.NewTagStore(db)
	exists, err := store.Exists(ctx)
	if err != nil {
		return nil, domain.IOError("sql", path, err)
	}
	if !exists {
		return nil, domain.IOError("sql", path, errors.New("tags table missing"))
	}
	tags, err := store.List(ctx)
	if err != nil {
		return nil, domain.IOError("sql", path, err)
	}
	return tags, nil
}

// Ordered reports whether Read preserves table order for cfg.
func (t *sqlTarget) Ordered(cfg TargetConfig) bool {
	c, err := connectionFromConfig(cfg)
	if err != nil {
		return false
	}
	d, _ := storage.DialectFor(c.Driver)
	return d.Ordered()
}
