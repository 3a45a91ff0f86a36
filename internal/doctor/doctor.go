// Package doctor checks that the external tools a build shells out to are
// installed and satisfy the template's version constraints.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sysmanage-labs/projbuilder/internal/manifest"
)

// Tool is an executable to check and how to ask it for its version.
type Tool struct {
	Name        string
	VersionArgs []string
}

// DefaultTools are the commands every build runs.
var DefaultTools = []Tool{
	{Name: "git", VersionArgs: []string{"--version"}},
	{Name: "go", VersionArgs: []string{"version"}},
	{Name: "npm", VersionArgs: []string{"--version"}},
}

// Status is the outcome of checking one tool.
type Status int

const (
	StatusOK Status = iota
	StatusMissing
	StatusFailed
)

func (s Status) tag() string {
	switch s {
	case StatusOK:
		return "[ OK ]"
	case StatusMissing:
		return "[MISS]"
	default:
		return "[FAIL]"
	}
}

// Result describes one checked tool.
type Result struct {
	Tool       string
	Path       string
	Version    string
	Constraint string
	Status     Status
	Detail     string
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts the first dotted version number from a tool's
// version output, e.g. "go version go1.22.3 linux/amd64" → 1.22.3.
func ParseVersion(output string) (*semver.Version, error) {
	m := versionPattern.FindString(output)
	if m == "" {
		return nil, fmt.Errorf("no version number in %q", strings.TrimSpace(output))
	}
	return semver.NewVersion(m)
}

// Checker runs the checks. The function fields exist so tests can stand in
// for the real PATH.
type Checker struct {
	LookPath func(file string) (string, error)
	Output   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New returns a Checker backed by the real PATH.
func New() *Checker {
	return &Checker{
		LookPath: exec.LookPath,
		Output: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Check looks up every default tool plus any tool named by reqs, and checks
// installed versions against the constraints in reqs.
func (c *Checker) Check(ctx context.Context, reqs []manifest.Requirement) []Result {
	constraints := make(map[string]manifest.Requirement, len(reqs))
	for _, r := range reqs {
		constraints[r.Tool] = r
	}

	tools := append([]Tool(nil), DefaultTools...)
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}
	for _, r := range reqs {
		if !known[r.Tool] {
			tools = append(tools, Tool{Name: r.Tool, VersionArgs: []string{"--version"}})
			known[r.Tool] = true
		}
	}

	results := make([]Result, 0, len(tools))
	for _, t := range tools {
		req, constrained := constraints[t.Name]
		results = append(results, c.checkTool(ctx, t, req, constrained))
	}
	return results
}

func (c *Checker) checkTool(ctx context.Context, t Tool, req manifest.Requirement, constrained bool) Result {
	res := Result{Tool: t.Name}
	if constrained {
		res.Constraint = req.Raw
	}

	path, err := c.LookPath(t.Name)
	if err != nil {
		res.Status = StatusMissing
		res.Detail = "not found"
		return res
	}
	res.Path = path

	if !constrained {
		res.Detail = "found at " + path
		return res
	}

	out, err := c.Output(ctx, t.Name, t.VersionArgs...)
	if err != nil {
		res.Status = StatusFailed
		res.Detail = fmt.Sprintf("running %s %s: %v", t.Name, strings.Join(t.VersionArgs, " "), err)
		return res
	}
	v, err := ParseVersion(string(out))
	if err != nil {
		res.Status = StatusFailed
		res.Detail = err.Error()
		return res
	}
	res.Version = v.String()

	if !req.Constraint.Check(v) {
		res.Status = StatusFailed
		res.Detail = fmt.Sprintf("version %s does not satisfy %s", res.Version, req.Raw)
		return res
	}
	res.Detail = fmt.Sprintf("%s satisfies %s", res.Version, req.Raw)
	return res
}

// Report prints one line per result and a summary, and returns how many
// checks did not pass.
func Report(w io.Writer, results []Result) int {
	p := message.NewPrinter(language.English)

	fmt.Fprintln(w, "Tool check:")
	failed := 0
	for _, r := range results {
		if r.Status != StatusOK {
			failed++
		}
		fmt.Fprintf(w, "  %s %s: %s\n", r.Status.tag(), r.Tool, r.Detail)
	}

	if failed > 0 {
		p.Fprintf(w, "\n  %d of %d checks failed\n", failed, len(results))
	} else {
		p.Fprintf(w, "\n  All %d checks passed\n", len(results))
	}
	return failed
}
