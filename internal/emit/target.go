// Package emit holds the artifact targets a tag table is compiled into.
// Implementations register themselves from init(), one file per target.
package emit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cast"

	"tagc/internal/domain"
)

// ── Target ─────────────────────────────────────────────────
// A Target turns a validated table into one artifact and can read that
// artifact back. Targets are stateless; everything they need arrives in
// Env and TargetConfig on each call.

// TargetConfig is an opaque configuration map parsed per target type.
type TargetConfig map[string]any

// String returns cfg[key] as a string, or def when unset or empty.
func (c TargetConfig) String(key, def string) string {
	if v, ok := c[key]; ok {
		if s := cast.ToString(v); s != "" {
			return s
		}
	}
	return def
}

// Bool returns cfg[key] as a bool.
func (c TargetConfig) Bool(key string) bool {
	return cast.ToBool(c[key])
}

// Int returns cfg[key] as an int, or def when unset.
func (c TargetConfig) Int(key string, def int) int {
	if v, ok := c[key]; ok {
		return cast.ToInt(v)
	}
	return def
}

// ConfigField describes a single configuration input for a target.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"` // "string" | "bool" | "int" | "select"
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// TargetSpec describes a target type and its configuration fields.
type TargetSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	Extension    string        `json:"extension"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Env carries the collaborators a target writes through.
type Env struct {
	Fs afero.Fs
}

// Artifact describes what a successful Emit produced.
type Artifact struct {
	Target string `json:"target"`
	Path   string `json:"path"`
	Count  int    `json:"count"`
}

// Target is the interface every artifact format implements.
type Target interface {
	// Spec returns metadata about this target type.
	Spec() TargetSpec

	// Emit writes the whole table as one artifact. The artifact is either
	// fully replaced or left as it was.
	Emit(ctx context.Context, env Env, cfg TargetConfig, table *domain.Table) (*Artifact, error)

	// Read decodes an artifact written by Emit back into tags, in the order
	// the artifact stores them.
	Read(ctx context.Context, env Env, cfg TargetConfig) ([]domain.Tag, error)
}

// ── Target Registry ────────────────────────────────────────

var (
	registryMu sync.RWMutex
	registry   = map[string]Target{}
)

// RegisterTarget registers a target by its spec type.
// Called from init() in each target implementation file.
func RegisterTarget(t Target) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t.Spec().Type] = t
}

// GetTarget returns a registered target by type, or an error if not found.
func GetTarget(typ string) (Target, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown target type: %q", typ)
	}
	return t, nil
}

// ListTargets returns the specs of all registered targets sorted by type.
func ListTargets() []TargetSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]TargetSpec, 0, len(registry))
	for _, t := range registry {
		specs = append(specs, t.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// requireOutput returns the mandatory output path of cfg.
func requireOutput(target string, cfg TargetConfig) (string, error) {
	out := cfg.String("output", "")
	if out == "" {
		return "", fmt.Errorf("%s: output is required", target)
	}
	return out, nil
}

// ReadsInOrder reports whether t.Read returns tags in table order for cfg.
// Targets keyed on code rather than position implement Ordered.
func ReadsInOrder(t Target, cfg TargetConfig) bool {
	if o, ok := t.(interface{ Ordered(TargetConfig) bool }); ok {
		return o.Ordered(cfg)
	}
	return true
}
