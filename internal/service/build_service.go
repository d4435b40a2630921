package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tagc/internal/config"
	"tagc/internal/domain"
	"tagc/internal/emit"
	"tagc/internal/loader"
)

// ─────────────────────────────────────────────────────────────
// Build Service: load once, emit every selected target
// ─────────────────────────────────────────────────────────────

// Build statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// TargetResult is the outcome of one emitter (or one verification).
type TargetResult struct {
	Target   string        `json:"target"`
	Path     string        `json:"path,omitempty"`
	Count    int           `json:"count"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	err      error
}

// BuildResult is the outcome of a whole run.
type BuildResult struct {
	RunID    string         `json:"runId"`
	Source   string         `json:"source"`
	Tags     int            `json:"tags"`
	Status   string         `json:"status"`
	Error    string         `json:"error,omitempty"`
	Targets  []TargetResult `json:"targets"`
	Duration time.Duration  `json:"duration"`
}

// BuildService compiles the configured source into the configured targets.
type BuildService struct {
	cfg     *config.Config
	fs      afero.Fs
	logger  *zap.Logger
	emitter EventEmitter
	running buildGuard
}

// NewBuildService creates a BuildService. fs backs the source and the text
// artifacts; a nil emitter drops events.
func NewBuildService(cfg *config.Config, fs afero.Fs, logger *zap.Logger, emitter EventEmitter) *BuildService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuildService{cfg: cfg, fs: fs, logger: logger, emitter: emitter}
}

// Config returns the service configuration.
func (s *BuildService) Config() *config.Config {
	return s.cfg
}

// ── Load ───────────────────────────────────────────────────

// Check loads and validates the source without writing anything.
func (s *BuildService) Check(ctx context.Context) (*domain.Table, error) {
	table, err := loader.LoadFile(ctx, s.fs, s.cfg.Source, loader.Options{Comma: s.cfg.Comma})
	if err != nil {
		s.logger.Error("[LOAD] source rejected", zap.String("source", s.cfg.Source), zap.Error(err))
		return nil, err
	}
	s.logger.Debug("[LOAD] source loaded", zap.String("source", s.cfg.Source), zap.Int("tags", table.Len()))
	return table, nil
}

// ── Build ──────────────────────────────────────────────────

// Build loads the source once and runs the selected targets against the
// resulting table. only narrows the configured selection; empty means all.
// A load failure aborts before any target runs. Target failures do not
// stop or undo the other targets; they are joined into the returned error.
func (s *BuildService) Build(ctx context.Context, only ...string) (*BuildResult, error) {
	release, ok := s.running.Acquire(s.cfg.Source)
	if !ok {
		s.emitter.Emit(ctx, EventBuildSkipped, s.cfg.Source)
		return nil, fmt.Errorf("build of %s is already running", s.cfg.Source)
	}
	defer release()

	start := time.Now()
	result := &BuildResult{RunID: uuid.NewString(), Source: s.cfg.Source}
	log := s.logger.With(zap.String("run", result.RunID))

	targets, err := s.selectTargets(only)
	if err != nil {
		return s.fail(ctx, result, start, err)
	}

	table, err := s.Check(ctx)
	if err != nil {
		return s.fail(ctx, result, start, err)
	}
	result.Tags = table.Len()
	log.Info("[BUILD] source loaded", zap.String("source", s.cfg.Source), zap.Int("tags", table.Len()), zap.Strings("targets", targets))

	result.Targets = s.runTargets(ctx, targets, func(ctx context.Context, t emit.Target, tc emit.TargetConfig) (*emit.Artifact, error) {
		return t.Emit(ctx, emit.Env{Fs: s.fs}, tc, table)
	})

	var errs []error
	for _, tr := range result.Targets {
		if tr.err != nil {
			log.Error("[BUILD] target failed", zap.String("target", tr.Target), zap.Error(tr.err))
			errs = append(errs, tr.err)
			continue
		}
		log.Info("[BUILD] artifact written", zap.String("target", tr.Target), zap.String("path", tr.Path), zap.Int("count", tr.Count), zap.Duration("took", tr.Duration))
	}
	if err := errors.Join(errs...); err != nil {
		return s.fail(ctx, result, start, err)
	}

	result.Status = StatusSuccess
	result.Duration = time.Since(start)
	s.emitter.Emit(ctx, EventBuildCompleted, result)
	return result, nil
}

// ── Verify ─────────────────────────────────────────────────

// Verify loads the source and reads every selected artifact back,
// comparing it with the table.
func (s *BuildService) Verify(ctx context.Context, only ...string) (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{RunID: uuid.NewString(), Source: s.cfg.Source}

	targets, err := s.selectTargets(only)
	if err != nil {
		return s.fail(ctx, result, start, err)
	}
	table, err := s.Check(ctx)
	if err != nil {
		return s.fail(ctx, result, start, err)
	}
	result.Tags = table.Len()

	result.Targets = s.runTargets(ctx, targets, func(ctx context.Context, t emit.Target, tc emit.TargetConfig) (*emit.Artifact, error) {
		if err := emit.Verify(ctx, t, emit.Env{Fs: s.fs}, tc, table); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Spec().Type, err)
		}
		return &emit.Artifact{Target: t.Spec().Type, Path: tc.String("output", ""), Count: table.Len()}, nil
	})

	var errs []error
	for _, tr := range result.Targets {
		if tr.err != nil {
			errs = append(errs, tr.err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}
	result.Status = StatusSuccess
	result.Duration = time.Since(start)
	return result, nil
}

// WaitRunning blocks until in-flight builds finish or ctx is done.
func (s *BuildService) WaitRunning(ctx context.Context) {
	s.running.Wait(ctx)
}

// ── Helpers ────────────────────────────────────────────────

type targetFunc func(ctx context.Context, t emit.Target, tc emit.TargetConfig) (*emit.Artifact, error)

// runTargets runs fn for every target, at most cfg.Parallelism at a time.
// Results keep the order of targets.
func (s *BuildService) runTargets(ctx context.Context, targets []string, fn targetFunc) []TargetResult {
	results := make([]TargetResult, len(targets))
	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for i, typ := range targets {
		g.Go(func() error {
			started := time.Now()
			tr := TargetResult{Target: typ}
			t, err := emit.GetTarget(typ)
			var art *emit.Artifact
			if err == nil {
				art, err = fn(ctx, t, s.cfg.Targets[typ])
			}
			tr.Duration = time.Since(started)
			if err != nil {
				tr.Status, tr.Error, tr.err = StatusError, err.Error(), err
			} else {
				tr.Status, tr.Path, tr.Count = StatusSuccess, art.Path, art.Count
			}
			results[i] = tr
			// Targets are independent; a failure must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *BuildService) selectTargets(only []string) ([]string, error) {
	if len(only) == 0 {
		return s.cfg.SelectedTargets(), nil
	}
	for _, typ := range only {
		if _, err := emit.GetTarget(typ); err != nil {
			return nil, err
		}
		if _, ok := s.cfg.Targets[typ]; !ok {
			return nil, fmt.Errorf("target %q has no output configured", typ)
		}
	}
	return only, nil
}

func (s *BuildService) fail(ctx context.Context, result *BuildResult, start time.Time, err error) (*BuildResult, error) {
	result.Status = StatusError
	result.Error = err.Error()
	result.Duration = time.Since(start)
	s.emitter.Emit(ctx, EventBuildFailed, result)
	return result, err
}
