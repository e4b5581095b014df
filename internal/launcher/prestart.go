package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bloom/bloomctl/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Step is one unit of the pre-start sequence. FailureMessage is what the
// operator sees when Run fails.
type Step struct {
	Name           string
	FailureMessage string
	Run            func(ctx context.Context) error
}

// StepError reports which pre-start step failed
type StepError struct {
	Step    string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Prestarter runs whatever must happen before the server starts
type Prestarter interface {
	Run(ctx context.Context) error
}

// Sequence runs steps strictly in order and stops at the first failure
type Sequence struct {
	steps  []Step
	logger *zap.Logger
}

// NewSequence creates a sequence of steps
func NewSequence(logger *zap.Logger, steps ...Step) *Sequence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequence{steps: steps, logger: logger}
}

// Steps returns the step names in execution order
func (s *Sequence) Steps() []string {
	names := make([]string, len(s.steps))
	for i, step := range s.steps {
		names[i] = step.Name
	}
	return names
}

// Run executes every step. The returned error is a *StepError.
func (s *Sequence) Run(ctx context.Context) error {
	ctx = logger.WithContext(ctx, s.logger)
	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Message: step.FailureMessage, Err: err}
		}

		stepCtx, log := logger.WithStep(ctx, step.Name)
		log.Info("Running pre-start step")
		if err := step.Run(stepCtx); err != nil {
			log.Error("Pre-start step failed", zap.Error(err))
			return &StepError{Step: step.Name, Message: step.FailureMessage, Err: err}
		}
		log.Info("Pre-start step completed")
	}
	return nil
}

// Waiter blocks until dependencies are reachable
type Waiter interface {
	Wait(ctx context.Context) error
}

// Seeder loads fixture data
type Seeder interface {
	Load(ctx context.Context) error
}

// ReadinessStep waits for the database (and any other probed service)
func ReadinessStep(w Waiter) Step {
	return Step{Name: "readiness", FailureMessage: "database is not ready", Run: w.Wait}
}

// MigrateStep upgrades the schema to the latest revision
func MigrateStep(up func(ctx context.Context) error) Step {
	return Step{Name: "migrate", FailureMessage: "migrations failed", Run: up}
}

// FixturesStep seeds reference data
func FixturesStep(s Seeder) Step {
	return Step{Name: "fixtures", FailureMessage: "fixture loading failed", Run: s.Load}
}

// HookStep runs a project-provided shell script with sh. A missing script is skipped.
func HookStep(script, workDir string, stdout, stderr io.Writer) Step {
	if !filepath.IsAbs(script) {
		script = filepath.Join(workDir, script)
	}
	return Step{
		Name:           "hook",
		FailureMessage: "pre-start script failed",
		Run: func(ctx context.Context) error {
			log := logger.FromContext(ctx)
			if _, err := os.Stat(script); errors.Is(err, os.ErrNotExist) {
				log.Debug("No pre-start script, skipping", zap.String("script", script))
				return nil
			}

			log.Info("Running pre-start script", zap.String("script", script))
			cmd := exec.CommandContext(ctx, "sh", script)
			cmd.Dir = workDir
			cmd.Env = os.Environ()
			cmd.Stdout = stdout
			cmd.Stderr = stderr
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("%s: %w", script, err)
			}
			return nil
		},
	}
}
