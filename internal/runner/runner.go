// Package runner executes the external commands a build step needs, streaming
// their combined output into the build's output sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sysmanage-labs/projbuilder/internal/progress"
)

// CommandError reports an external command that could not be started or
// exited non-zero. It always aborts the build.
type CommandError struct {
	Argv     []string
	Dir      string
	ExitCode int // -1 when the process never ran
	Err      error
}

func (e *CommandError) Error() string {
	cmd := strings.Join(e.Argv, " ")
	if e.ExitCode < 0 {
		return fmt.Sprintf("command %q failed to start: %v", cmd, e.Err)
	}
	return fmt.Sprintf("command %q exited with status %d", cmd, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

type flusher interface {
	Flush() error
}

// Runner runs commands with stdout and stderr both directed at one writer.
type Runner struct {
	out io.Writer
	log progress.LineWriter
	dir string
	env []string
}

// New returns a Runner writing process output to out and announcing each
// invocation on log.
func New(out io.Writer, log progress.LineWriter) *Runner {
	return &Runner{out: out, log: log}
}

// InDir returns a copy of r that starts processes in dir. The caller's working
// directory is left untouched.
func (r *Runner) InDir(dir string) *Runner {
	c := *r
	c.dir = dir
	return &c
}

// WithEnv returns a copy of r that adds KEY=VALUE pairs to the inherited
// environment.
func (r *Runner) WithEnv(kv ...string) *Runner {
	c := *r
	c.env = append(append([]string(nil), r.env...), kv...)
	return &c
}

// Exec runs argv and waits for it. There is no timeout; cancel ctx to kill
// the process.
func (r *Runner) Exec(ctx context.Context, argv ...string) error {
	if len(argv) == 0 || argv[0] == "" {
		return &CommandError{ExitCode: -1, Err: errors.New("empty command")}
	}

	if r.log != nil {
		r.log.WriteLine("> " + strings.Join(argv, " "))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.dir
	cmd.Env = r.environ()

	// One shared writer keeps stdout and stderr in a single ordered stream.
	out := r.out
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()

	// Surface a trailing partial line before deciding success, so output up
	// to a failure is never held back.
	if f, ok := out.(flusher); ok {
		_ = f.Flush()
	}

	if err == nil {
		return nil
	}
	cerr := &CommandError{Argv: argv, Dir: r.dir, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return cerr
}

func (r *Runner) environ() []string {
	env := os.Environ()
	if !progress.IsTerminal(r.out) {
		// Nothing downstream can render colour escapes.
		env = append(env, "NO_COLOR=1")
	}
	return append(env, r.env...)
}
