package emit

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"tagc/internal/domain"
)

func (t *carrayTarget) Read(ctx context.Context, env Env, cfg TargetConfig) ([]domain.Tag, error) {
	out, err := requireOutput("carray", cfg)
	if err != nil {
		return nil, err
	}
	data, err := readAll(env.Fs, "carray", out)
	if err != nil {
		return nil, err
	}
	return ParseCArray(data, carrayNames(cfg))
}

// ParseCArray reads back the array and count written by RenderCArray.
// A NULL code marks the zeroed placeholder record of an empty table.
func ParseCArray(data []byte, names CNames) ([]domain.Tag, error) {
	arrayPrefix := fmt.Sprintf("const %s %s[", names.Type, names.Array)
	countPrefix := fmt.Sprintf("const int %s = ", names.Count)

	var (
		tags     []domain.Tag
		count    = -1
		inArray  bool
		seenDecl bool
		lineNo   int
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case inArray && line == "};":
			inArray = false
		case inArray:
			tag, ok, err := parseCRecord(line)
			if err != nil {
				return nil, fmt.Errorf("carray line %d: %w", lineNo, err)
			}
			if ok {
				tags = append(tags, tag)
			}
		case strings.HasPrefix(line, arrayPrefix):
			inArray, seenDecl = true, true
		case strings.HasPrefix(line, countPrefix):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, countPrefix), ";"))
			if err != nil {
				return nil, fmt.Errorf("carray line %d: bad count: %w", lineNo, err)
			}
			count = n
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	switch {
	case !seenDecl:
		return nil, fmt.Errorf("carray: array %s not found", names.Array)
	case inArray:
		return nil, fmt.Errorf("carray: unterminated array %s", names.Array)
	case count < 0:
		return nil, fmt.Errorf("carray: count %s not found", names.Count)
	case count != len(tags):
		return nil, fmt.Errorf("carray: %s = %d but array has %d records", names.Count, count, len(tags))
	}
	return tags, nil
}

// parseCRecord parses `{"code", 0|1, "desc"|NULL},`. ok is false for the
// placeholder record.
func parseCRecord(line string) (tag domain.Tag, ok bool, err error) {
	s := &cScanner{s: strings.TrimSuffix(line, ",")}
	if err := s.expect('{'); err != nil {
		return tag, false, err
	}
	code, err := s.stringOrNull()
	if err != nil {
		return tag, false, fmt.Errorf("code: %w", err)
	}
	if err := s.expect(','); err != nil {
		return tag, false, err
	}
	flag, err := s.integer()
	if err != nil {
		return tag, false, fmt.Errorf("has_param: %w", err)
	}
	if err := s.expect(','); err != nil {
		return tag, false, err
	}
	desc, err := s.stringOrNull()
	if err != nil {
		return tag, false, fmt.Errorf("description: %w", err)
	}
	if err := s.expect('}'); err != nil {
		return tag, false, err
	}
	if !s.done() {
		return tag, false, fmt.Errorf("trailing input %q", s.rest())
	}
	if code == nil {
		return tag, false, nil
	}
	return domain.Tag{Code: *code, HasParam: flag != 0, Description: desc}, true, nil
}

type cScanner struct {
	s   string
	pos int
}

func (c *cScanner) skipSpace() {
	for c.pos < len(c.s) && (c.s[c.pos] == ' ' || c.s[c.pos] == '\t') {
		c.pos++
	}
}

func (c *cScanner) rest() string { return c.s[c.pos:] }

func (c *cScanner) done() bool {
	c.skipSpace()
	return c.pos == len(c.s)
}

func (c *cScanner) expect(ch byte) error {
	c.skipSpace()
	if c.pos >= len(c.s) || c.s[c.pos] != ch {
		return fmt.Errorf("expected %q at %q", ch, c.rest())
	}
	c.pos++
	return nil
}

func (c *cScanner) integer() (int, error) {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.s) && c.s[c.pos] >= '0' && c.s[c.pos] <= '9' {
		c.pos++
	}
	return strconv.Atoi(c.s[start:c.pos])
}

// stringOrNull reads a C string literal, or NULL which yields nil.
func (c *cScanner) stringOrNull() (*string, error) {
	c.skipSpace()
	if strings.HasPrefix(c.rest(), cNull) {
		c.pos += len(cNull)
		return nil, nil
	}
	if c.pos >= len(c.s) || c.s[c.pos] != '"' {
		return nil, fmt.Errorf("expected string literal at %q", c.rest())
	}
	end := c.pos + 1
	for end < len(c.s) && c.s[end] != '"' {
		if c.s[end] == '\\' {
			end++
		}
		end++
	}
	if end >= len(c.s) {
		return nil, fmt.Errorf("unterminated string literal")
	}
	v, err := strconv.Unquote(c.s[c.pos : end+1])
	if err != nil {
		return nil, err
	}
	c.pos = end + 1
	return &v, nil
}
