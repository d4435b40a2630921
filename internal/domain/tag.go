package domain

import (
	"fmt"
	"unicode/utf8"
)

// MaxCodeLen is the longest tag code the animation string scanner can match.
const MaxCodeLen = 3

// Tag is a single animation tag definition.
// Description is nil when the tag has no description; it is never a pointer
// to an empty string once the tag has passed through the loader.
type Tag struct {
	Code        string  `json:"code"`
	HasParam    bool    `json:"hasParam"`
	Description *string `json:"description,omitempty"`
}

// Desc returns the description and whether it is present.
func (t Tag) Desc() (string, bool) {
	if t.Description == nil {
		return "", false
	}
	return *t.Description, true
}

// Flag returns HasParam as the 0/1 integer every target format uses.
func (t Tag) Flag() int {
	if t.HasParam {
		return 1
	}
	return 0
}

// Equal reports whether two tags carry the same code, flag and description.
func (t Tag) Equal(o Tag) bool {
	if t.Code != o.Code || t.HasParam != o.HasParam {
		return false
	}
	a, aok := t.Desc()
	b, bok := o.Desc()
	return aok == bok && a == b
}

func (t Tag) String() string {
	if d, ok := t.Desc(); ok {
		return fmt.Sprintf("%s(%d) %q", t.Code, t.Flag(), d)
	}
	return fmt.Sprintf("%s(%d)", t.Code, t.Flag())
}

// StringPtr returns a description pointer, mapping "" to nil.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ── Table ─────────────────────────────────────────────────
// Immutable, ordered set of tags. Insertion order is the order of the
// canonical source and is preserved by every ordered target.

// Table is a validated, read-only sequence of tags.
type Table struct {
	tags  []Tag
	index map[string]int
}

// NewTable validates tags and returns an immutable Table holding a copy.
// Rows in returned errors are 1-based positions in tags.
func NewTable(tags []Tag) (*Table, error) {
	t := &Table{
		tags:  make([]Tag, 0, len(tags)),
		index: make(map[string]int, len(tags)),
	}
	for i, tag := range tags {
		row := i + 1
		if err := ValidateCode(tag.Code); err != nil {
			return nil, &Error{Kind: KindInvalidCode, Row: row, Field: FieldCode, Code: tag.Code, Err: err}
		}
		if first, dup := t.index[tag.Code]; dup {
			return nil, &Error{Kind: KindDuplicateKey, Row: row, FirstRow: first + 1, Field: FieldCode, Code: tag.Code}
		}
		if tag.Description != nil {
			if err := ValidateDescription(*tag.Description); err != nil {
				return nil, &Error{Kind: KindInvalidDescription, Row: row, Field: FieldDescription, Code: tag.Code, Err: err}
			}
			tag.Description = StringPtr(*tag.Description)
		}
		t.index[tag.Code] = len(t.tags)
		t.tags = append(t.tags, tag)
	}
	return t, nil
}

// ValidateCode checks the shape of a tag code.
func ValidateCode(code string) error {
	if code == "" {
		return fmt.Errorf("empty code")
	}
	if len(code) > MaxCodeLen {
		return fmt.Errorf("code %q longer than %d bytes", code, MaxCodeLen)
	}
	if !utf8.ValidString(code) {
		return fmt.Errorf("code %q is not valid UTF-8", code)
	}
	return nil
}

// ValidateDescription checks that a description is valid UTF-8. Every
// target stores text as UTF-8; JSON would otherwise silently replace the
// offending bytes with U+FFFD.
func ValidateDescription(desc string) error {
	if !utf8.ValidString(desc) {
		return fmt.Errorf("description is not valid UTF-8 (convert the source from its legacy encoding)")
	}
	return nil
}

// Len returns the number of tags.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tags)
}

// All returns a copy of the tags in table order.
func (t *Table) All() []Tag {
	if t == nil {
		return nil
	}
	out := make([]Tag, len(t.tags))
	copy(out, t.tags)
	return out
}

// Get returns the tag with the given code.
func (t *Table) Get(code string) (Tag, bool) {
	if t == nil {
		return Tag{}, false
	}
	i, ok := t.index[code]
	if !ok {
		return Tag{}, false
	}
	return t.tags[i], true
}

// Lookup matches the longest tag code (3, 2, then 1 bytes) at the start of s,
// the way animation strings are scanned. It returns the tag and the number of
// bytes consumed, or n == 0 when nothing matches.
func (t *Table) Lookup(s string) (tag Tag, n int) {
	for k := min(MaxCodeLen, len(s)); k > 0; k-- {
		if found, ok := t.Get(s[:k]); ok {
			return found, k
		}
	}
	return Tag{}, 0
}
