// Package loader reads the canonical tag source into a validated domain.Table.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"tagc/internal/domain"
)

// ── CSV Tag Source ─────────────────────────────────────────
// One tag per row: code, has_param (0|1), description. No header.

// FieldCount is the number of fields every source row must have.
const FieldCount = 3

// Options tweaks the CSV dialect.
type Options struct {
	Comma rune // field separator, default ','
}

// LoadFile opens path on fs and loads it.
func LoadFile(ctx context.Context, fs afero.Fs, path string, opts Options) (*domain.Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, domain.IOError("loader", path, err)
	}
	defer f.Close()

	table, err := Load(ctx, f, opts)
	if err != nil {
		var e *domain.Error
		if errors.As(err, &e) && e.Kind == domain.KindIOFailure && e.Path == "" {
			e.Path = path
		}
		return nil, err
	}
	return table, nil
}

// Load parses r into a Table. The whole source is validated, including code
// uniqueness, before a table is returned.
func Load(ctx context.Context, r io.Reader, opts Options) (*domain.Table, error) {
	reader := csv.NewReader(skipBOM(r))
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.FieldsPerRecord = -1 // field count is checked per row below
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var tags []domain.Tag
	seen := make(map[string]int)
	row := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &domain.Error{Kind: domain.KindMalformedRow, Row: row, Err: perr.Err}
			}
			return nil, &domain.Error{Kind: domain.KindIOFailure, Target: "loader", Err: err}
		}

		tag, err := parseRow(row, record)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[tag.Code]; dup {
			return nil, &domain.Error{
				Kind:     domain.KindDuplicateKey,
				Row:      row,
				FirstRow: first,
				Field:    domain.FieldCode,
				Code:     tag.Code,
			}
		}
		seen[tag.Code] = row
		tags = append(tags, tag)
	}

	return domain.NewTable(tags)
}

// utf8BOM is written by some spreadsheet exports at the start of a CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 byte order mark so it does not end up in
// the first code.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func parseRow(row int, record []string) (domain.Tag, error) {
	if len(record) != FieldCount {
		return domain.Tag{}, &domain.Error{Kind: domain.KindMalformedRow, Row: row, Fields: len(record)}
	}

	code := strings.TrimSpace(record[0])
	if err := domain.ValidateCode(code); err != nil {
		return domain.Tag{}, &domain.Error{Kind: domain.KindInvalidCode, Row: row, Field: domain.FieldCode, Code: code, Err: err}
	}

	hasParam, err := parseFlag(record[1])
	if err != nil {
		return domain.Tag{}, &domain.Error{
			Kind:  domain.KindInvalidFlag,
			Row:   row,
			Field: domain.FieldHasParam,
			Code:  code,
			Value: record[1],
		}
	}

	if err := domain.ValidateDescription(record[2]); err != nil {
		return domain.Tag{}, &domain.Error{
			Kind:  domain.KindInvalidDescription,
			Row:   row,
			Field: domain.FieldDescription,
			Code:  code,
			Err:   err,
		}
	}

	return domain.Tag{
		Code:        code,
		HasParam:    hasParam,
		Description: domain.StringPtr(record[2]),
	}, nil
}

// parseFlag accepts the integers 0 and 1 only.
func parseFlag(s string) (bool, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, strconv.ErrRange
}
