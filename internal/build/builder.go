package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sysmanage-labs/projbuilder/internal/logging"
	"github.com/sysmanage-labs/projbuilder/internal/progress"
)

// Total is the number of progress units in a full build.
const Total = 100

// OverwriteQuestion is asked before an existing target directory is deleted.
const OverwriteQuestion = "Target dir already exists, continuing will *DELETE* this directory?"

// State is a position in the builder's lifecycle.
type State int

const (
	StateInit State = iota
	StateValidated
	StateTargetPrepared
	StateRunning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateValidated:
		return "validated"
	case StateTargetPrepared:
		return "target-prepared"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Confirmer answers yes/no questions on behalf of the user.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Builder drives one build: validate the target, prepare it, run the steps.
type Builder struct {
	repoRoot  string
	registry  *Registry
	reporter  progress.Reporter
	confirmer Confirmer
	stdout    io.Writer
	logger    *slog.Logger

	state   State
	session *Session
}

// Option configures a Builder.
type Option func(*Builder)

// WithReporter sets the progress display. Defaults to progress.Nop.
func WithReporter(r progress.Reporter) Option {
	return func(b *Builder) { b.reporter = r }
}

// WithConfirmer sets who is asked before an existing target is deleted.
func WithConfirmer(c Confirmer) Option {
	return func(b *Builder) { b.confirmer = c }
}

// WithStdout sets the real output stream that steps write through. Defaults
// to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(b *Builder) { b.stdout = w }
}

// WithLogger sets the logger. Defaults to the logger carried by the Run
// context.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New creates a Builder for the repository at repoRoot running the steps in
// registry.
func New(repoRoot string, registry *Registry, opts ...Option) *Builder {
	b := &Builder{
		repoRoot: repoRoot,
		registry: registry,
		reporter: progress.Nop{},
		stdout:   os.Stdout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the builder's current lifecycle state.
func (b *Builder) State() State {
	return b.state
}

// Session returns the session of the current or last run, or nil before the
// target has been validated.
func (b *Builder) Session() *Session {
	return b.session
}

// Run builds a project in targetDir. Any error leaves the builder in
// StateFailed; files already written stay on disk.
func (b *Builder) Run(ctx context.Context, targetDir string) (err error) {
	if b.state != StateInit {
		return &ConfigurationError{Msg: fmt.Sprintf("builder already used (state %s)", b.state)}
	}
	if b.logger == nil {
		b.logger = logging.FromContext(ctx)
	}
	defer func() {
		if err != nil {
			b.state = StateFailed
			b.logger.Debug("build failed", "error", err)
		}
	}()

	target, err := b.validate(targetDir)
	if err != nil {
		return err
	}
	b.state = StateValidated

	if err := b.prepareTarget(ctx, target); err != nil {
		return err
	}
	b.state = StateTargetPrepared

	return b.runSteps(ctx)
}

// validate resolves targetDir and refuses the repository root, or any
// directory containing it. Both sides are compared with symlinks resolved so
// an aliased path to the repository cannot slip through.
func (b *Builder) validate(targetDir string) (string, error) {
	if targetDir == "" {
		return "", &InvalidTargetError{Target: targetDir, Reason: "no target directory given"}
	}
	target, err := filepath.Abs(targetDir)
	if err != nil {
		return "", &InvalidTargetError{Target: targetDir, Reason: err.Error()}
	}
	root, err := filepath.Abs(b.repoRoot)
	if err != nil {
		return "", &InvalidTargetError{Target: targetDir, Reason: fmt.Sprintf("resolving repository root: %v", err)}
	}

	realTarget, err := resolvePath(target)
	if err != nil {
		return "", &InvalidTargetError{Target: targetDir, Reason: err.Error()}
	}
	realRoot, err := resolvePath(root)
	if err != nil {
		return "", &InvalidTargetError{Target: targetDir, Reason: fmt.Sprintf("resolving repository root: %v", err)}
	}
	switch {
	case realTarget == realRoot:
		return "", &InvalidTargetError{Target: targetDir, Reason: "cannot create project in the root of the repo"}
	case contains(realTarget, realRoot):
		return "", &InvalidTargetError{Target: targetDir, Reason: "target contains the repository root"}
	}

	b.session = &Session{
		RepoRoot:  root,
		TargetDir: target,
		Reporter:  b.reporter,
		Logger:    b.logger,
	}
	return target, nil
}

// resolvePath returns the symlink-free form of the absolute path p. Trailing
// components that do not exist yet are joined onto the resolved deepest
// existing ancestor.
func resolvePath(p string) (string, error) {
	var missing []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}

// contains reports whether child lies strictly below dir.
func contains(dir, child string) bool {
	rel, err := filepath.Rel(dir, child)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// prepareTarget deletes an existing target after the user confirms.
func (b *Builder) prepareTarget(ctx context.Context, target string) error {
	_, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &FilesystemError{Op: "stat", Path: target, Err: err}
	}

	if b.confirmer == nil {
		return &ConfigurationError{Msg: "target exists and no confirmer is configured"}
	}
	ok, err := b.confirmer.Confirm(ctx, OverwriteQuestion)
	if err != nil {
		return fmt.Errorf("confirming overwrite of %s: %w", target, err)
	}
	if !ok {
		return ErrAbortedByUser
	}

	b.logger.Info("removing existing target", "path", target)
	if err := os.RemoveAll(target); err != nil {
		return &FilesystemError{Op: "remove", Path: target, Err: err}
	}
	return nil
}

// runSteps runs every registered step with output intercepted. The Output is
// released and the reporter closed on every path out of here.
func (b *Builder) runSteps(ctx context.Context) error {
	steps := b.registry.seal()
	b.state = StateRunning

	b.reporter.Open(Total)
	defer b.reporter.Close()

	out := progress.Intercept(b.stdout, b.reporter)
	defer out.Release()
	b.session.Stdout = out

	increments, final := Increments(len(steps), Total)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("build interrupted before step %q: %w", step.Name, err)
		}

		b.reporter.Advance(increments[i])
		b.reporter.SetLabel(step.Name)
		b.logger.Debug("running step", "index", i+1, "total", len(steps), "name", step.Name)

		if err := step.Action(ctx, b.session); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}

	b.reporter.Advance(final)
	b.state = StateDone
	return nil
}

// Increments splits total progress units across n steps plus one reserved
// final increment. Each step gets round(total/(n+1)), clamped so the running
// sum never passes total, and the final increment is whatever remains. The
// step increments and the final increment always add up to exactly total.
func Increments(n, total int) (perStep []int, final int) {
	if n < 0 {
		n = 0
	}
	perStep = make([]int, n)
	if total <= 0 {
		return perStep, 0
	}

	each := int(math.Round(float64(total) / float64(n+1)))
	used := 0
	for i := range perStep {
		inc := min(each, total-used)
		perStep[i] = inc
		used += inc
	}
	return perStep, total - used
}
