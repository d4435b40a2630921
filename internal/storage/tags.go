package storage

import (
	"context"
	"database/sql"
	"fmt"

	"tagc/internal/domain"
)

// TagStore reads and rebuilds the tags table.
type TagStore struct {
	db *DB
}

// NewTagStore creates a new TagStore.
func NewTagStore(db *DB) *TagStore {
	return &TagStore{db: db}
}

// ConstraintError reports the tag whose insert violated a key constraint.
type ConstraintError struct {
	Code string
	Err  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("insert %q: %v", e.Code, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// ReplaceAll rebuilds the tags table from tags in order. On any error the
// previous table, if any, is left as it was.
func (s *TagStore) ReplaceAll(ctx context.Context, tags []domain.Tag) error {
	if s.db.dialect.TransactionalDDL {
		return s.replaceInTx(ctx, tags)
	}
	return s.replaceBySwap(ctx, tags)
}

// replaceInTx drops, recreates and fills the tags table inside one
// transaction.
func (s *TagStore) replaceInTx(ctx context.Context, tags []domain.Tag) (err error) {
	d := s.db.dialect
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, d.DropTable(TagsTable)); err != nil {
		return fmt.Errorf("drop tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, d.CreateTable(TagsTable)); err != nil {
		return fmt.Errorf("create tags: %w", err)
	}
	if err := insertTags(ctx, tx, d.InsertRow(TagsTable), tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// replaceBySwap fills StagingTable and only then swaps it in, for dialects
// whose DDL cannot be rolled back. The tags table is untouched until every
// row has been inserted.
func (s *TagStore) replaceBySwap(ctx context.Context, tags []domain.Tag) (err error) {
	d := s.db.dialect
	conn := s.db.conn

	if _, err := conn.ExecContext(ctx, d.DropTable(StagingTable)); err != nil {
		return fmt.Errorf("drop %s: %w", StagingTable, err)
	}
	if _, err := conn.ExecContext(ctx, d.CreateTable(StagingTable)); err != nil {
		return fmt.Errorf("create %s: %w", StagingTable, err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), d.DropTable(StagingTable))
		}
	}()

	if err := s.fillStaging(ctx, tags); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, d.CreateTableIfMissing(TagsTable)); err != nil {
		return fmt.Errorf("create tags: %w", err)
	}
	if _, err := conn.ExecContext(ctx, d.DropTable(RetiredTable)); err != nil {
		return fmt.Errorf("drop %s: %w", RetiredTable, err)
	}
	for _, stmt := range d.Swap {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("swap tables: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, d.DropTable(RetiredTable)); err != nil {
		return fmt.Errorf("drop %s: %w", RetiredTable, err)
	}
	return nil
}

func (s *TagStore) fillStaging(ctx context.Context, tags []domain.Tag) (err error) {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := insertTags(ctx, tx, s.db.dialect.InsertRow(StagingTable), tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertTags(ctx context.Context, tx *sql.Tx, query string, tags []domain.Tag) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, tag := range tags {
		desc, ok := tag.Desc()
		_, err := stmt.ExecContext(ctx, tag.Code, tag.Flag(), sql.NullString{String: desc, Valid: ok})
		if err != nil {
			if IsConstraintViolation(err) {
				return &ConstraintError{Code: tag.Code, Err: err}
			}
			return fmt.Errorf("insert %q: %w", tag.Code, err)
		}
	}
	return nil
}

// List returns every row of the tags table in the dialect's order.
func (s *TagStore) List(ctx context.Context) ([]domain.Tag, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.dialect.SelectTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var (
			tag      domain.Tag
			hasParam int
			desc     sql.NullString
		)
		if err := rows.Scan(&tag.Code, &hasParam, &desc); err != nil {
			return nil, err
		}
		tag.HasParam = hasParam != 0
		if desc.Valid {
			d := desc.String
			tag.Description = &d
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Count returns the number of rows in the tags table.
func (s *TagStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, s.db.dialect.CountTags).Scan(&n)
	return n, err
}

// Exists reports whether the tags table exists.
func (s *TagStore) Exists(ctx context.Context) (bool, error) {
	return s.tableExists(ctx, TagsTable)
}

func (s *TagStore) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, s.db.dialect.TableExists, name).Scan(&n)
	return n > 0, err
}
