package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/nao1215/imagefinder/internal/model"
)

// ErrSkipped is returned by a step that had nothing to do for the report.
// The pipeline neither treats it as a failure nor records the step as performed.
var ErrSkipped = errors.New("step skipped")

// StepError records which step of a pipeline failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepFailed reports whether err, as returned by Execute, includes a failure
// of the step called name.
func StepFailed(err error, name string) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *StepError:
		return e.Step == name
	case interface{ Unwrap() []error }:
		return slices.ContainsFunc(e.Unwrap(), func(err error) bool {
			return StepFailed(err, name)
		})
	default:
		return StepFailed(errors.Unwrap(err), name)
	}
}

// Step is one stage of a pipeline.
type Step interface {
	// Do executes the step. It returns an error only when the report must
	// not be processed further; per-page problems belong in the report.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging and PerformedSteps.
	Name() string
}

// Pipeline executes steps in order against a single report.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing after a failed step.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. By default the pipeline stops at the first failure.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddSteps appends steps to the pipeline in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked between steps
// and stops the pipeline; steps handle their own timeouts.
//
// Every failure is returned as a *StepError. The pipeline stops at the first
// one unless continueOnError is set, in which case the remaining steps still
// run and all failures are returned joined. Steps own report.Error; the
// pipeline never writes it.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	var errs []error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"seed", report.Seed,
				"reason", err,
			)
			return errors.Join(append(errs, &StepError{Step: step.Name(), Err: err})...)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"seed", report.Seed,
		)

		err := step.Do(ctx, report)
		switch {
		case err == nil:
			report.PerformedSteps = append(report.PerformedSteps, step.Name())
		case errors.Is(err, ErrSkipped):
			p.logger.Debug("step skipped", "step", step.Name(), "seed", report.Seed)
		default:
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", report.Seed,
				"error", err,
			)
			errs = append(errs, &StepError{Step: step.Name(), Err: err})
			if !p.continueOnError {
				return errs[0]
			}
		}
	}

	return errors.Join(errs...)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
