package emit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tagc/internal/domain"
)

// Verify reads the artifact of target back and compares it with table.
func Verify(ctx context.Context, t Target, env Env, cfg TargetConfig, table *domain.Table) error {
	got, err := t.Read(ctx, env, cfg)
	if err != nil {
		return err
	}
	return Compare(table.All(), got, ReadsInOrder(t, cfg))
}

// Compare checks got against want. When ordered is false both sides are
// compared sorted by code.
func Compare(want, got []domain.Tag, ordered bool) error {
	if len(want) != len(got) {
		return fmt.Errorf("artifact has %d tags, source has %d", len(got), len(want))
	}
	if !ordered {
		want, got = sortedByCode(want), sortedByCode(got)
	}

	var diffs []string
	for i := range want {
		if !want[i].Equal(got[i]) {
			diffs = append(diffs, fmt.Sprintf("#%d: want %s, got %s", i+1, want[i], got[i]))
		}
	}
	if len(diffs) > 0 {
		return fmt.Errorf("artifact differs from source:\n  %s", strings.Join(diffs, "\n  "))
	}
	return nil
}

func sortedByCode(tags []domain.Tag) []domain.Tag {
	out := make([]domain.Tag, len(tags))
	copy(out, tags)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
