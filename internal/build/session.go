package build

import (
	"io"
	"log/slog"

	"github.com/sysmanage-labs/projbuilder/internal/progress"
	"github.com/sysmanage-labs/projbuilder/internal/runner"
)

// Session is the state of the one build in progress, passed to every step.
type Session struct {
	RepoRoot  string
	TargetDir string

	// Stdout is the intercepted output sink. Anything written here is shown
	// above the progress bar.
	Stdout io.Writer

	Reporter progress.Reporter
	Logger   *slog.Logger
}

// Println shows a line of text above the progress bar.
func (s *Session) Println(line string) {
	s.Reporter.WriteLine(line)
}

// Command returns a runner that starts processes in dir and streams their
// output into the session's sink.
func (s *Session) Command(dir string) *runner.Runner {
	return runner.New(s.Stdout, s.Reporter).InDir(dir)
}
