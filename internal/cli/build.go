package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sysmanage-labs/projbuilder/internal/branding"
	"github.com/sysmanage-labs/projbuilder/internal/build"
	"github.com/sysmanage-labs/projbuilder/internal/config"
	"github.com/sysmanage-labs/projbuilder/internal/logging"
	"github.com/sysmanage-labs/projbuilder/internal/manifest"
	"github.com/sysmanage-labs/projbuilder/internal/progress"
	"github.com/sysmanage-labs/projbuilder/internal/prompt"
	"github.com/sysmanage-labs/projbuilder/internal/setup"
	"github.com/sysmanage-labs/projbuilder/internal/ui"
	"github.com/sysmanage-labs/projbuilder/internal/vcs"
)

type buildOptions struct {
	TargetDir     string
	Settings      config.Settings
	NoInteraction bool

	// commands replaces the setup commands; nil runs the real ones.
	commands *setup.Commands
}

// runBuild creates one project. out must be the real terminal stream: the
// progress bar draws on it and step output is intercepted from it.
func runBuild(ctx context.Context, opts buildOptions, in io.Reader, out io.Writer) error {
	s := opts.Settings

	repoRoot, err := vcs.RepoRoot(ctx, "")
	if err != nil {
		return err
	}

	fmt.Fprintln(out, ui.Bold("Welcome to "+branding.DisplayName()+"!"))
	fmt.Fprint(out, ui.KeyValues("",
		ui.KV("Repo root", repoRoot),
		ui.KV("Target dir", opts.TargetDir),
	))

	templateRoot := setup.TemplateRoot(repoRoot, s.TemplateDir)
	tmpl, err := manifest.Load(templateRoot)
	if err != nil {
		return &build.ConfigurationError{Msg: err.Error()}
	}

	reg := build.NewRegistry()
	if err := setup.Register(reg, setup.Options{
		TemplateDir: s.TemplateDir,
		FrontendDir: s.FrontendDir,
		SkipInstall: s.SkipInstall,
		Manifest:    tmpl,
		Commands:    opts.commands,
	}); err != nil {
		return err
	}

	bar := progress.NewBar(out)
	logger := logging.New(s.LogLevel, s.LogFormat, progress.Lines(bar))
	ctx = logging.WithLogger(ctx, logger)
	logger.Debug("resolved settings", "template", templateRoot, "skip_install", s.SkipInstall)

	b := build.New(repoRoot, reg,
		build.WithReporter(bar),
		build.WithConfirmer(newConfirmer(opts, in, out)),
		build.WithStdout(out),
		build.WithLogger(logger),
	)
	if err := b.Run(ctx, opts.TargetDir); err != nil {
		return err
	}

	fmt.Fprintln(out, ui.SuccessMsg("Project created in %s", b.Session().TargetDir))
	return nil
}

func newConfirmer(opts buildOptions, in io.Reader, out io.Writer) build.Confirmer {
	if opts.Settings.AssumeYes {
		return prompt.Answer(true)
	}
	p := prompt.New(in, out)
	if opts.NoInteraction || !ui.IsInteractive() {
		p.NonInteractive()
	}
	return p
}
