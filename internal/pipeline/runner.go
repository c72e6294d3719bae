// Package pipeline drives catalog statements through a warehouse in load
// order: drop, create, copy, insert, count.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dwhload/internal/catalog"
	"dwhload/pkg/errors"
)

// Executor runs statements against a warehouse.
type Executor interface {
	Exec(ctx context.Context, stmt catalog.Statement) error
	Count(ctx context.Context, stmt catalog.Statement) (int64, error)
}

// Observer is notified around every statement. Calls happen on the Run
// goroutine, one statement at a time.
type Observer interface {
	StatementStarted(stmt catalog.Statement, index, total int)
	StatementFinished(stmt catalog.Statement, index, total int, err error)
}

// Step is one phase of a load.
type Step = catalog.Kind

// Presets.
var (
	CreateTables = []Step{catalog.KindDrop, catalog.KindCreate}
	ETL          = []Step{catalog.KindCopy, catalog.KindInsert, catalog.KindCount}
	Full         = catalog.Kinds()
)

// StepResult records how one step went.
type StepResult struct {
	Step       Step          `json:"step" yaml:"step"`
	Statements int           `json:"statements" yaml:"statements"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Err        error         `json:"-" yaml:"-"`
}

// TableCount is the row count of one table after a count step.
type TableCount struct {
	Table catalog.Table `json:"table" yaml:"table"`
	Rows  int64         `json:"rows" yaml:"rows"`
}

// Report summarizes a run.
type Report struct {
	RunID     uuid.UUID     `json:"run_id" yaml:"run_id"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Steps     []StepResult  `json:"steps" yaml:"steps"`
	Counts    []TableCount  `json:"counts,omitempty" yaml:"counts,omitempty"`
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Runner executes catalog steps.
type Runner struct {
	exec     Executor
	catalog  *catalog.Catalog
	logger   *zap.Logger
	observer Observer
}

// New creates a runner. logger and observer may be nil.
func New(exec Executor, c *catalog.Catalog, logger *zap.Logger, observer Observer) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{exec: exec, catalog: c, logger: logger, observer: observer}
}

// Statements returns the statements steps expand to, in execution order.
func (r *Runner) Statements(steps ...Step) ([]catalog.Statement, error) {
	ordered, err := order(steps)
	if err != nil {
		return nil, err
	}
	var stmts []catalog.Statement
	for _, step := range ordered {
		stmts = append(stmts, r.catalog.Step(step)...)
	}
	return stmts, nil
}

// Run executes steps in canonical order regardless of the order given. It
// stops at the first failing statement; later statements and steps are not
// attempted. The report is returned alongside the error.
func (r *Runner) Run(ctx context.Context, steps ...Step) (*Report, error) {
	ordered, err := order(steps)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.New(), StartedAt: time.Now()}
	logger := r.logger.With(zap.String("run_id", report.RunID.String()))

	total := 0
	for _, step := range ordered {
		total += len(r.catalog.Step(step))
	}

	logger.Info("Starting run",
		zap.String("dialect", r.catalog.Dialect().Name()),
		zap.Strings("steps", stepNames(ordered)),
		zap.Int("statements", total))

	index := 0
	for _, step := range ordered {
		result := StepResult{Step: step}
		start := time.Now()

		for _, stmt := range r.catalog.Step(step) {
			if err := ctx.Err(); err != nil {
				result.Err = err
				break
			}
			index++
			r.started(stmt, index, total)

			var n int64
			if step == catalog.KindCount {
				n, err = r.exec.Count(ctx, stmt)
			} else {
				err = r.exec.Exec(ctx, stmt)
			}

			r.finished(stmt, index, total, err)
			if err != nil {
				result.Err = err
				break
			}
			result.Statements++
			if step == catalog.KindCount {
				report.Counts = append(report.Counts, TableCount{Table: stmt.Table, Rows: n})
			}
		}

		result.Duration = time.Since(start)
		report.Steps = append(report.Steps, result)

		if result.Err != nil {
			report.Duration = time.Since(report.StartedAt)
			logger.Error("Run aborted",
				zap.String("step", string(step)),
				zap.Int("completed", result.Statements),
				zap.Error(result.Err))
			return report, aborted(step, result.Err)
		}
		logger.Debug("Step finished",
			zap.String("step", string(step)),
			zap.Int("statements", result.Statements),
			zap.Duration("duration", result.Duration))
	}

	report.Duration = time.Since(report.StartedAt)
	logger.Info("Run finished", zap.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) started(stmt catalog.Statement, index, total int) {
	if r.observer != nil {
		r.observer.StatementStarted(stmt, index, total)
	}
}

func (r *Runner) finished(stmt catalog.Statement, index, total int, err error) {
	if r.observer != nil {
		r.observer.StatementFinished(stmt, index, total, err)
	}
}

// order deduplicates steps and sorts them into load order.
func order(steps []Step) ([]Step, error) {
	if len(steps) == 0 {
		return nil, errors.New(errors.ErrCodeInternal, "No steps to run")
	}
	canonical := catalog.Kinds()
	for _, s := range steps {
		if !slices.Contains(canonical, s) {
			return nil, errors.New(errors.ErrCodeInternal, fmt.Sprintf("Unknown step %q", s)).
				WithSuggestions(fmt.Sprintf("Steps are %v", stepNames(canonical)))
		}
	}
	ordered := make([]Step, 0, len(steps))
	for _, s := range canonical {
		if slices.Contains(steps, s) {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

// aborted keeps the cause's code so callers can still tell a permission
// error from a failed COPY.
func aborted(step Step, err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.WithContext("step", string(step))
	}
	return errors.Wrap(err, errors.ErrCodeStepAborted, fmt.Sprintf("Step %s failed", step)).
		WithContext("step", string(step))
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = string(s)
	}
	return names
}
