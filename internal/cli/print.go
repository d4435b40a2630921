package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"tagc/internal/service"
)

// printResult writes a one-line-per-target summary of a run.
func printResult(out io.Writer, r *service.BuildResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, t := range r.Targets {
		switch t.Status {
		case service.StatusSuccess:
			fmt.Fprintf(w, "%s\tok\t%s\t%d tags\n", t.Target, t.Path, t.Count)
		default:
			fmt.Fprintf(w, "%s\tFAILED\t%s\n", t.Target, t.Error)
		}
	}
	_ = w.Flush()
	fmt.Fprintf(out, "%s: %s (%d tags, run %s)\n", r.Source, r.Status, r.Tags, r.RunID)
}

// printEmitter reports builds the user did not start directly, i.e. the
// rebuilds triggered by the watcher. Commands that print their own result
// leave live off.
type printEmitter struct {
	mu   sync.Mutex
	out  io.Writer
	live bool
}

func (p *printEmitter) setLive(live bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = live
}

func (p *printEmitter) Emit(_ context.Context, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch event {
	case service.EventBuildSkipped:
		fmt.Fprintf(p.out, "build of %v skipped: already running\n", data)
	case service.EventBuildCompleted, service.EventBuildFailed:
		if r, ok := data.(*service.BuildResult); ok && p.live {
			printResult(p.out, r)
		}
	}
}
