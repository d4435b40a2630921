package emit

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagc/internal/domain"
	"tagc/internal/storage"
)

// duplicates bypasses the loader so the store's primary key is what rejects it.
var duplicates = []domain.Tag{
	{Code: "AAA", HasParam: true},
	{Code: "AAA", Description: domain.StringPtr("dup")},
}

func TestReplaceTags_ConstraintViolationRemovesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.db")
	c := storage.Connection{Driver: storage.DriverSQLite, Path: path}

	_, err := replaceTags(context.Background(), c, duplicates)

	require.ErrorIs(t, err, domain.ErrConstraintViolation)
	var e *domain.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "AAA", e.Code)
	assert.Equal(t, "sql", e.Target)
	assert.NoFileExists(t, path)
}

func TestReplaceTags_ConstraintViolationKeepsPreviousTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.db")
	c := storage.Connection{Driver: storage.DriverSQLite, Path: path}
	previous := []domain.Tag{{Code: "s", HasParam: true, Description: domain.StringPtr("sound")}}
	n, err := replaceTags(context.Background(), c, previous)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = replaceTags(context.Background(), c, duplicates)
	require.ErrorIs(t, err, domain.ErrConstraintViolation)

	db, err := storage.Open(c)
	require.NoError(t, err)
	defer db.Close()
	got, err := storage.NewTagStore(db).List(context.Background())
	require.NoError(t, err)
	require.NoError(t, Compare(previous, got, true))
}

func TestReplaceTags_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.db")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := replaceTags(ctx, storage.Connection{Driver: storage.DriverSQLite, Path: path}, duplicates)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestSQLRead_MissingTagsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := storage.Open(storage.Connection{Driver: storage.DriverSQLite, Path: path})
	require.NoError(t, err)
	_, err = db.Conn().Exec(`CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = (&sqlTarget{}).Read(context.Background(), Env{}, TargetConfig{"output": path})

	require.ErrorIs(t, err, domain.ErrIOFailure)
	assert.ErrorContains(t, err, "tags table missing")
}

func TestConnectionFromConfig(t *testing.T) {
	c, err := connectionFromConfig(TargetConfig{"driver": "postgres", "host": "db", "port": "5433", "database": "omf", "user": "u"})
	require.NoError(t, err)
	assert.Equal(t, storage.DriverPostgres, c.Driver)
	assert.Equal(t, 5433, c.Port)
	assert.Equal(t, "postgres://db/omf", artifactPath(c))

	_, err = connectionFromConfig(TargetConfig{})
	assert.ErrorContains(t, err, "output is required")

	c, err = connectionFromConfig(TargetConfig{"driver": "mysql", "dsn": "u:p@tcp(h)/d"})
	require.NoError(t, err)
	assert.Equal(t, "mysql://(dsn)", artifactPath(c))
	assert.False(t, (&sqlTarget{}).Ordered(TargetConfig{"driver": "mysql", "dsn": "x"}))
	assert.True(t, (&sqlTarget{}).Ordered(TargetConfig{"output": "x.db"}))
}

// failingRenameFs refuses to move the temporary file into place.
type failingRenameFs struct{ afero.Fs }

func (f failingRenameFs) Rename(string, string) error { return errors.New("rename refused") }

func TestWriteAtomic_FailureKeepsOldContent(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/out/tags.json", []byte("old"), 0o644))

	err := writeAtomic(failingRenameFs{mem}, "json", "/out/tags.json", bytes.NewBufferString("new"))
	require.ErrorIs(t, err, domain.ErrIOFailure)

	data, _ := afero.ReadFile(mem, "/out/tags.json")
	assert.Equal(t, "old", string(data))
	entries, _ := afero.ReadDir(mem, "/out")
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}

func TestWriteAtomic_CreatesDirectories(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, writeAtomic(mem, "carray", "/a/b/c/taglist.c", bytes.NewBufferString("x")))

	data, err := afero.ReadFile(mem, "/a/b/c/taglist.c")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}
