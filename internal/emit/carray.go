package emit

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"tagc/internal/domain"
)

// ── C Array Target ─────────────────────────────────────────
// Writes a C translation unit defining the tag array and its element count:
//
//	const sd_tag sd_taglist[] = {
//	    {"bpd", 1, "Blit position ..."},
//	    {"m", 1, NULL},
//	};
//	const int sd_taglist_size = 2;

// Preamble is the first line of every generated C artifact.
const Preamble = "/* This file is auto-generated by tagc. Do not edit. */"

const cNull = "NULL"

type carrayTarget struct{}

func init() { RegisterTarget(&carrayTarget{}) }

func (t *carrayTarget) Spec() TargetSpec {
	return TargetSpec{
		Type:      "carray",
		Label:     "C array",
		Extension: ".c",
		ConfigFields: []ConfigField{
			{Key: "output", Label: "Output", Type: "string", Required: true, Help: "Path of the generated .c file"},
			{Key: "header", Label: "Header", Type: "string", Default: "formats/taglist.h", Help: "Header declaring the record type"},
			{Key: "type", Label: "Record type", Type: "string", Default: "sd_tag"},
			{Key: "array", Label: "Array name", Type: "string", Default: "sd_taglist"},
			{Key: "count", Label: "Count name", Type: "string", Default: "sd_taglist_size"},
		},
	}
}

// CNames are the identifiers used in the generated C source.
type CNames struct {
	Header string
	Type   string
	Array  string
	Count  string
}

// DefaultCNames match the declarations in formats/taglist.h.
var DefaultCNames = CNames{
	Header: "formats/taglist.h",
	Type:   "sd_tag",
	Array:  "sd_taglist",
	Count:  "sd_taglist_size",
}

func carrayNames(cfg TargetConfig) CNames {
	return CNames{
		Header: cfg.String("header", DefaultCNames.Header),
		Type:   cfg.String("type", DefaultCNames.Type),
		Array:  cfg.String("array", DefaultCNames.Array),
		Count:  cfg.String("count", DefaultCNames.Count),
	}
}

func (t *carrayTarget) Emit(ctx context.Context, env Env, cfg TargetConfig, table *domain.Table) (*Artifact, error) {
	out, err := requireOutput("carray", cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	RenderCArray(&buf, carrayNames(cfg), table.All())
	if err := writeAtomic(env.Fs, "carray", out, &buf); err != nil {
		return nil, err
	}
	return &Artifact{Target: "carray", Path: out, Count: table.Len()}, nil
}

// RenderCArray writes the C source for tags into buf.
func RenderCArray(buf *bytes.Buffer, names CNames, tags []domain.Tag) {
	buf.WriteString(Preamble + "\n\n")
	buf.WriteString("#include <stddef.h>\n")
	fmt.Fprintf(buf, "#include %s\n\n", cQuote(names.Header))

	if len(tags) == 0 {
		// C has no empty initializer lists; keep one zeroed record.
		fmt.Fprintf(buf, "const %s %s[1] = {\n    {%s, 0, %s},\n};\n\n", names.Type, names.Array, cNull, cNull)
	} else {
		fmt.Fprintf(buf, "const %s %s[] = {\n", names.Type, names.Array)
		for _, tag := range tags {
			desc := cNull
			if d, ok := tag.Desc(); ok {
				desc = cQuote(d)
			}
			fmt.Fprintf(buf, "    {%s, %d, %s},\n", cQuote(tag.Code), tag.Flag(), desc)
		}
		buf.WriteString("};\n\n")
	}

	fmt.Fprintf(buf, "const int %s = %d;\n", names.Count, len(tags))
}

// cQuote renders s as a C string literal. Control bytes, invalid UTF-8 and
// the second '?' of a trigraph prefix are written as 3-digit octal escapes.
func cQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		c := s[i]
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&b, `\%03o`, c)
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '?' && i > 0 && s[i-1] == '?':
			b.WriteString(`\077`)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&b, `\%03o`, c)
		default:
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	b.WriteByte('"')
	return b.String()
}
