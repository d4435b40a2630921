package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a compile failure.
type Kind string

const (
	KindMalformedRow        Kind = "MalformedRow"
	KindInvalidFlag         Kind = "InvalidFlag"
	KindInvalidCode         Kind = "InvalidCode"
	KindInvalidDescription  Kind = "InvalidDescription"
	KindDuplicateKey        Kind = "DuplicateKey"
	KindIOFailure           Kind = "IOFailure"
	KindConstraintViolation Kind = "ConstraintViolation"
)

// Source field names used in row-level errors.
const (
	FieldCode        = "code"
	FieldHasParam    = "has_param"
	FieldDescription = "description"
)

// Error is the single error type of the compile pipeline.
// Row and FirstRow are 1-based; zero means "not row related".
type Error struct {
	Kind     Kind
	Row      int
	FirstRow int // DuplicateKey: row of the first occurrence
	Field    string
	Code     string
	Fields   int    // MalformedRow: number of fields found
	Value    string // InvalidFlag: offending text
	Path     string // IOFailure: artifact path
	Target   string // emitter that failed
	Err      error
}

// Sentinels for errors.Is matching on kind.
var (
	ErrMalformedRow        = &Error{Kind: KindMalformedRow}
	ErrInvalidFlag         = &Error{Kind: KindInvalidFlag}
	ErrInvalidCode         = &Error{Kind: KindInvalidCode}
	ErrInvalidDescription  = &Error{Kind: KindInvalidDescription}
	ErrDuplicateKey        = &Error{Kind: KindDuplicateKey}
	ErrIOFailure           = &Error{Kind: KindIOFailure}
	ErrConstraintViolation = &Error{Kind: KindConstraintViolation}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch e.Kind {
	case KindMalformedRow:
		fmt.Fprintf(&b, ": row %d has %d fields, want 3", e.Row, e.Fields)
	case KindInvalidFlag:
		fmt.Fprintf(&b, ": row %d field %s: %q is not 0 or 1", e.Row, e.Field, e.Value)
	case KindInvalidCode, KindInvalidDescription:
		fmt.Fprintf(&b, ": row %d field %s", e.Row, e.Field)
	case KindDuplicateKey:
		fmt.Fprintf(&b, "(%q): row %d repeats row %d", e.Code, e.Row, e.FirstRow)
	case KindConstraintViolation:
		fmt.Fprintf(&b, "(%q)", e.Code)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " [%s]", e.Target)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IOError wraps an I/O failure on path.
func IOError(target, path string, err error) error {
	return &Error{Kind: KindIOFailure, Target: target, Path: path, Err: err}
}
