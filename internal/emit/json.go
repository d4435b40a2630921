package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"tagc/internal/domain"
)

// ── JSON Target ────────────────────────────────────────────
// Writes [["code", 0|1, "description"], ...] in table order.
// Absent descriptions are "" unless null_absent is set.

type jsonTarget struct{}

func init() { RegisterTarget(&jsonTarget{}) }

func (t *jsonTarget) Spec() TargetSpec {
	return TargetSpec{
		Type:      "json",
		Label:     "JSON",
		Extension: ".json",
		ConfigFields: []ConfigField{
			{Key: "output", Label: "Output", Type: "string", Required: true, Help: "Path of the generated .json file"},
			{Key: "null_absent", Label: "Null for absent", Type: "bool", Default: "false", Help: "Write null instead of \"\" for tags without a description"},
			{Key: "indent", Label: "Indent", Type: "string", Help: "Indent string; empty writes one line"},
		},
	}
}

func (t *jsonTarget) Emit(ctx context.Context, env Env, cfg TargetConfig, table *domain.Table) (*Artifact, error) {
	out, err := requireOutput("json", cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := RenderJSON(&buf, table.All(), cfg.Bool("null_absent"), cfg.String("indent", "")); err != nil {
		return nil, err
	}
	if err := writeAtomic(env.Fs, "json", out, &buf); err != nil {
		return nil, err
	}
	return &Artifact{Target: "json", Path: out, Count: table.Len()}, nil
}

// RenderJSON encodes tags as an array of 3-tuples into buf.
func RenderJSON(buf *bytes.Buffer, tags []domain.Tag, nullAbsent bool, indent string) error {
	rows := make([][3]any, len(tags))
	for i, tag := range tags {
		var desc any = ""
		if d, ok := tag.Desc(); ok {
			desc = d
		} else if nullAbsent {
			desc = nil
		}
		rows[i] = [3]any{tag.Code, tag.Flag(), desc}
	}

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func (t *jsonTarget) Read(ctx context.Context, env Env, cfg TargetConfig) ([]domain.Tag, error) {
	out, err := requireOutput("json", cfg)
	if err != nil {
		return nil, err
	}
	data, err := readAll(env.Fs, "json", out)
	if err != nil {
		return nil, err
	}
	return ParseJSON(data)
}

// ParseJSON decodes an artifact written by RenderJSON. Both "" and null
// decode to an absent description.
func ParseJSON(data []byte) ([]domain.Tag, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	tags := make([]domain.Tag, 0, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, fmt.Errorf("json element %d: %d fields, want 3", i, len(row))
		}
		var (
			code string
			flag int
			desc *string
		)
		if err := json.Unmarshal(row[0], &code); err != nil {
			return nil, fmt.Errorf("json element %d code: %w", i, err)
		}
		if err := json.Unmarshal(row[1], &flag); err != nil {
			return nil, fmt.Errorf("json element %d has_param: %w", i, err)
		}
		if flag != 0 && flag != 1 {
			return nil, fmt.Errorf("json element %d has_param: %d is not 0 or 1", i, flag)
		}
		if err := json.Unmarshal(row[2], &desc); err != nil {
			return nil, fmt.Errorf("json element %d description: %w", i, err)
		}
		if desc != nil {
			desc = domain.StringPtr(*desc)
		}
		tags = append(tags, domain.Tag{Code: code, HasParam: flag == 1, Description: desc})
	}
	return tags, nil
}
