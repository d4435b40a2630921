package emit_test

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagc/internal/domain"
	"tagc/internal/emit"
	"tagc/internal/storage"
)

func table(t *testing.T, tags ...domain.Tag) *domain.Table {
	t.Helper()
	tb, err := domain.NewTable(tags)
	require.NoError(t, err)
	return tb
}

// sample is the two-row table used throughout: ("ABC",1,"moves left"),("DEF",0,"").
func sample(t *testing.T) *domain.Table {
	return table(t,
		domain.Tag{Code: "ABC", HasParam: true, Description: domain.StringPtr("moves left")},
		domain.Tag{Code: "DEF"},
	)
}

func target(t *testing.T, typ string) emit.Target {
	t.Helper()
	tg, err := emit.GetTarget(typ)
	require.NoError(t, err)
	return tg
}

// ─────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────

func TestListTargets(t *testing.T) {
	var types []string
	for _, spec := range emit.ListTargets() {
		types = append(types, spec.Type)
		assert.NotEmpty(t, spec.ConfigFields, spec.Type)
	}
	assert.Equal(t, []string{"carray", "json", "sql"}, types)

	_, err := emit.GetTarget("yaml")
	assert.Error(t, err)
}

func TestTargetConfig_Accessors(t *testing.T) {
	cfg := emit.TargetConfig{"output": "x.c", "null_absent": "true", "port": "5433", "empty": ""}

	assert.Equal(t, "x.c", cfg.String("output", "d"))
	assert.Equal(t, "d", cfg.String("empty", "d"))
	assert.Equal(t, "d", cfg.String("missing", "d"))
	assert.True(t, cfg.Bool("null_absent"))
	assert.False(t, cfg.Bool("missing"))
	assert.Equal(t, 5433, cfg.Int("port", 0))
	assert.Equal(t, 7, cfg.Int("missing", 7))
}

// ─────────────────────────────────────────────────────────────
// C array
// ─────────────────────────────────────────────────────────────

func TestCArray_Emit(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := emit.TargetConfig{"output": "/out/taglist.c"}

	art, err := target(t, "carray").Emit(context.Background(), emit.Env{Fs: fs}, cfg, sample(t))
	require.NoError(t, err)
	assert.Equal(t, 2, art.Count)
	assert.Equal(t, "/out/taglist.c", art.Path)

	data, err := afero.ReadFile(fs, "/out/taglist.c")
	require.NoError(t, err)
	want := emit.Preamble + `

#include <stddef.h>
#include "formats/taglist.h"

const sd_tag sd_taglist[] = {
    {"ABC", 1, "moves left"},
    {"DEF", 0, NULL},
};

const int sd_taglist_size = 2;
`
	assert.Equal(t, want, string(data))
}

func TestCArray_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	emit.RenderCArray(&buf, emit.DefaultCNames, nil)

	assert.Contains(t, buf.String(), "const sd_tag sd_taglist[1] = {\n    {NULL, 0, NULL},\n};")
	assert.Contains(t, buf.String(), "const int sd_taglist_size = 0;")

	tags, err := emit.ParseCArray(buf.Bytes(), emit.DefaultCNames)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestCArray_CustomNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := emit.TargetConfig{"output": "/tags.c", "header": "tags.h", "type": "tag_t", "array": "TAGS", "count": "NTAGS"}
	tg := target(t, "carray")

	_, err := tg.Emit(context.Background(), emit.Env{Fs: fs}, cfg, sample(t))
	require.NoError(t, err)

	data, _ := afero.ReadFile(fs, "/tags.c")
	assert.Contains(t, string(data), `#include "tags.h"`)
	assert.Contains(t, string(data), "const tag_t TAGS[] = {")
	assert.Contains(t, string(data), "const int NTAGS = 2;")

	require.NoError(t, emit.Verify(context.Background(), tg, emit.Env{Fs: fs}, cfg, sample(t)))
}

func TestCArray_Escaping(t *testing.T) {
	tricky := table(t,
		domain.Tag{Code: "q", Description: domain.StringPtr(`say "hi" \ bye`)},
		domain.Tag{Code: "n", Description: domain.StringPtr("line\nbreak\ttab")},
		domain.Tag{Code: "t", Description: domain.StringPtr("what??!")},
		domain.Tag{Code: "u", Description: domain.StringPtr("héllo\x01")},
	)

	var buf bytes.Buffer
	emit.RenderCArray(&buf, emit.DefaultCNames, tricky.All())
	out := buf.String()

	assert.Contains(t, out, `{"q", 0, "say \"hi\" \\ bye"},`)
	assert.Contains(t, out, `{"n", 0, "line\nbreak\ttab"},`)
	assert.Contains(t, out, `{"t", 0, "what?\077!"},`, "trigraphs must not survive")
	assert.Contains(t, out, `{"u", 0, "héllo\001"},`)
	assert.NotContains(t, out, "??")

	got, err := emit.ParseCArray(buf.Bytes(), emit.DefaultCNames)
	require.NoError(t, err)
	require.NoError(t, emit.Compare(tricky.All(), got, true))
}

func TestParseCArray_CountMismatch(t *testing.T) {
	var buf bytes.Buffer
	emit.RenderCArray(&buf, emit.DefaultCNames, sample(t).All())
	broken := strings.Replace(buf.String(), "sd_taglist_size = 2", "sd_taglist_size = 3", 1)

	_, err := emit.ParseCArray([]byte(broken), emit.DefaultCNames)
	assert.ErrorContains(t, err, "array has 2 records")
}

func TestCArray_MissingOutput(t *testing.T) {
	_, err := target(t, "carray").Emit(context.Background(), emit.Env{Fs: afero.NewMemMapFs()}, emit.TargetConfig{}, sample(t))
	assert.ErrorContains(t, err, "output is required")
}

// ─────────────────────────────────────────────────────────────
// JSON
// ─────────────────────────────────────────────────────────────

func TestJSON_Emit(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := emit.TargetConfig{"output": "/out/tags.json"}

	art, err := target(t, "json").Emit(context.Background(), emit.Env{Fs: fs}, cfg, sample(t))
	require.NoError(t, err)
	assert.Equal(t, 2, art.Count)

	data, err := afero.ReadFile(fs, "/out/tags.json")
	require.NoError(t, err)
	assert.Equal(t, `[["ABC",1,"moves left"],["DEF",0,""]]`+"\n", string(data))
}

func TestJSON_NullAbsent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, emit.RenderJSON(&buf, sample(t).All(), true, ""))
	assert.Equal(t, `[["ABC",1,"moves left"],["DEF",0,null]]`+"\n", buf.String())

	tags, err := emit.ParseJSON(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, emit.Compare(sample(t).All(), tags, true))
}

func TestJSON_NoHTMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	tb := table(t, domain.Tag{Code: "<", Description: domain.StringPtr("a & b")})
	require.NoError(t, emit.RenderJSON(&buf, tb.All(), false, ""))
	assert.Equal(t, `[["<",0,"a & b"]]`+"\n", buf.String())
}

func TestJSON_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, emit.RenderJSON(&buf, nil, false, ""))
	assert.Equal(t, "[]\n", buf.String())
}

func TestParseJSON_Rejects(t *testing.T) {
	for _, in := range []string{
		`{"a":1}`,
		`[["a",1]]`,
		`[["a",2,""]]`,
		`[[1,0,""]]`,
	} {
		_, err := emit.ParseJSON([]byte(in))
		assert.Error(t, err, in)
	}
}

// ─────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────

func sqlConfig(t *testing.T) (emit.TargetConfig, string) {
	path := filepath.Join(t.TempDir(), "tags.db")
	return emit.TargetConfig{"driver": "sqlite", "output": path}, path
}

func TestSQL_Emit(t *testing.T) {
	cfg, path := sqlConfig(t)

	art, err := target(t, "sql").Emit(context.Background(), emit.Env{}, cfg, sample(t))
	require.NoError(t, err)
	assert.Equal(t, path, art.Path)
	assert.Equal(t, 2, art.Count)

	db, err := storage.Open(storage.Connection{Driver: storage.DriverSQLite, Path: path})
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Conn().Query(`SELECT code, has_param, description FROM tags ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		code string
		flag int
		desc sql.NullString
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.code, &r.flag, &r.desc))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []row{
		{"ABC", 1, sql.NullString{String: "moves left", Valid: true}},
		{"DEF", 0, sql.NullString{}},
	}, got)
}

func TestSQL_RebuildIsIdempotent(t *testing.T) {
	cfg, path := sqlConfig(t)
	tg := target(t, "sql")

	for i := 0; i < 2; i++ {
		_, err := tg.Emit(context.Background(), emit.Env{}, cfg, sample(t))
		require.NoError(t, err)
	}

	db, err := storage.Open(storage.Connection{Driver: storage.DriverSQLite, Path: path})
	require.NoError(t, err)
	defer db.Close()
	n, err := storage.NewTagStore(db).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQL_ReadMissingDoesNotCreate(t *testing.T) {
	cfg, path := sqlConfig(t)

	_, err := target(t, "sql").Read(context.Background(), emit.Env{}, cfg)
	require.ErrorIs(t, err, domain.ErrIOFailure)
	assert.NoFileExists(t, path)
}

func TestSQL_UnknownDriver(t *testing.T) {
	_, err := target(t, "sql").Emit(context.Background(), emit.Env{}, emit.TargetConfig{"driver": "oracle"}, sample(t))
	assert.ErrorContains(t, err, "unsupported driver")
}

// ─────────────────────────────────────────────────────────────
// Round trips
// ─────────────────────────────────────────────────────────────

func TestRoundTrip_AllTargets(t *testing.T) {
	fs := afero.NewMemMapFs()
	sqlCfg, _ := sqlConfig(t)
	configs := map[string]emit.TargetConfig{
		"carray": {"output": "/out/taglist.c"},
		"json":   {"output": "/out/tags.json"},
		"sql":    sqlCfg,
	}
	src := table(t,
		domain.Tag{Code: "bpd", HasParam: true, Description: domain.StringPtr("Blit position destination")},
		domain.Tag{Code: "s", HasParam: true, Description: domain.StringPtr("Play sound")},
		domain.Tag{Code: "m", HasParam: true},
		domain.Tag{Code: "a"},
	)

	for typ, cfg := range configs {
		t.Run(typ, func(t *testing.T) {
			tg := target(t, typ)
			env := emit.Env{Fs: fs}
			_, err := tg.Emit(context.Background(), env, cfg, src)
			require.NoError(t, err)

			got, err := tg.Read(context.Background(), env, cfg)
			require.NoError(t, err)
			assert.NoError(t, emit.Compare(src.All(), got, true), "table order must survive")
			assert.NoError(t, emit.Verify(context.Background(), tg, env, cfg, src))
		})
	}
}

func TestCompare(t *testing.T) {
	a := []domain.Tag{{Code: "a"}, {Code: "b", HasParam: true}}
	swapped := []domain.Tag{{Code: "b", HasParam: true}, {Code: "a"}}

	assert.NoError(t, emit.Compare(a, a, true))
	assert.Error(t, emit.Compare(a, swapped, true))
	assert.NoError(t, emit.Compare(a, swapped, false))
	assert.ErrorContains(t, emit.Compare(a, a[:1], true), "artifact has 1 tags, source has 2")
	assert.ErrorContains(t, emit.Compare(a, []domain.Tag{{Code: "a"}, {Code: "b"}}, true), "#2")
}

func TestEmit_ReplacesExistingArtifact(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := emit.TargetConfig{"output": "/out/tags.json"}
	require.NoError(t, afero.WriteFile(fs, "/out/tags.json", []byte("stale"), 0o644))

	_, err := target(t, "json").Emit(context.Background(), emit.Env{Fs: fs}, cfg, sample(t))
	require.NoError(t, err)

	data, _ := afero.ReadFile(fs, "/out/tags.json")
	assert.True(t, strings.HasPrefix(string(data), `[["ABC"`))

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files may remain")
}
