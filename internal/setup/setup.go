// Package setup registers the build steps that turn a template into a new
// project: create the target, copy the template, then run the tidy, init and
// install commands inside it.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sysmanage-labs/projbuilder/internal/build"
	"github.com/sysmanage-labs/projbuilder/internal/manifest"
	"github.com/sysmanage-labs/projbuilder/internal/scaffold"
	"github.com/sysmanage-labs/projbuilder/internal/vcs"
)

// Step names, in run order.
const (
	StepCreateTarget = "Create target dir"
	StepCopyTemplate = "Copy template"
	StepSetupProject = "Setup project"
)

const (
	// DefaultFrontendDir is used when neither the caller nor the manifest
	// names one.
	DefaultFrontendDir = "frontend"

	packageJSON = "package.json"
)

// Commands are the argv lists the setup step runs.
type Commands struct {
	Tidy    []string // run in the target
	Init    []string // run in the target
	Install []string // run in the frontend directory
}

// DefaultCommands returns the go, git and npm invocations.
func DefaultCommands() Commands {
	return Commands{
		Tidy:    []string{"go", "mod", "tidy"},
		Init:    vcs.InitArgs(),
		Install: []string{"npm", "install"},
	}
}

// Options configures the registered steps.
type Options struct {
	// TemplateDir is the template tree, relative to the repository root
	// unless absolute.
	TemplateDir string
	// FrontendDir is relative to the target. Empty falls back to the
	// manifest, then DefaultFrontendDir.
	FrontendDir string
	SkipInstall bool
	// Manifest is the template's parsed template.yaml, or nil.
	Manifest *manifest.Template
	// Commands defaults to DefaultCommands when zero.
	Commands *Commands
}

// TemplateRoot resolves dir against repoRoot.
func TemplateRoot(repoRoot, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(repoRoot, dir)
}

// Register appends the three setup steps to reg in run order.
func Register(reg *build.Registry, opts Options) error {
	s := &steps{opts: opts, cmds: DefaultCommands()}
	if opts.Commands != nil {
		s.cmds = *opts.Commands
	}

	for _, st := range []build.Step{
		{Name: StepCreateTarget, Action: s.createTarget},
		{Name: StepCopyTemplate, Action: s.copyTemplate},
		{Name: StepSetupProject, Action: s.setupProject},
	} {
		if err := reg.Register(st.Name, st.Action); err != nil {
			return err
		}
	}
	return nil
}

type steps struct {
	opts Options
	cmds Commands
}

func (s *steps) frontendDir() string {
	switch {
	case s.opts.FrontendDir != "":
		return s.opts.FrontendDir
	case s.opts.Manifest != nil && s.opts.Manifest.FrontendDir != "":
		return s.opts.Manifest.FrontendDir
	default:
		return DefaultFrontendDir
	}
}

func (s *steps) createTarget(_ context.Context, sess *build.Session) error {
	if err := os.MkdirAll(sess.TargetDir, 0755); err != nil {
		return &build.FilesystemError{Op: "create", Path: sess.TargetDir, Err: err}
	}
	return nil
}

func (s *steps) copyTemplate(_ context.Context, sess *build.Session) error {
	src := TemplateRoot(sess.RepoRoot, s.opts.TemplateDir)

	name := ""
	if m := s.opts.Manifest; m != nil {
		name = m.Name
		for _, issue := range m.Issues {
			sess.Println(fmt.Sprintf("warning: %s: %s", manifest.FileName, issue))
		}
	}

	result, err := scaffold.Copy(src, sess.TargetDir, scaffold.NewProjectData(sess.TargetDir, name), scaffold.Options{
		Exclude: []string{manifest.FileName},
	})
	if err != nil {
		return &build.FilesystemError{Op: "copy", Path: src, Err: err}
	}
	sess.Logger.Info("template copied", "source", src, "files", len(result.Files), "rendered", result.Rendered)
	return nil
}

func (s *steps) setupProject(ctx context.Context, sess *build.Session) error {
	project := sess.Command(sess.TargetDir)
	if err := project.Exec(ctx, s.cmds.Tidy...); err != nil {
		return err
	}
	if err := project.Exec(ctx, s.cmds.Init...); err != nil {
		return err
	}

	frontend := filepath.Join(sess.TargetDir, s.frontendDir())
	if s.opts.SkipInstall {
		sess.Println(fmt.Sprintf("Skipping %s install (disabled)", s.frontendDir()))
		return nil
	}
	_, err := os.Stat(filepath.Join(frontend, packageJSON))
	if errors.Is(err, fs.ErrNotExist) {
		sess.Println(fmt.Sprintf("Skipping %s install (no %s)", s.frontendDir(), packageJSON))
		return nil
	}
	if err != nil {
		return &build.FilesystemError{Op: "stat", Path: frontend, Err: err}
	}
	return sess.Command(frontend).Exec(ctx, s.cmds.Install...)
}
