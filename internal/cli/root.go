package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sysmanage-labs/projbuilder/internal/branding"
	"github.com/sysmanage-labs/projbuilder/internal/build"
	"github.com/sysmanage-labs/projbuilder/internal/config"
	"github.com/sysmanage-labs/projbuilder/internal/prompt"
	"github.com/sysmanage-labs/projbuilder/internal/ui"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var noInteraction bool

// errMissingTarget is returned after usage has been printed.
var errMissingTarget = errors.New("missing target directory")

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("template-dir", "", "Template tree to copy, relative to the repository root")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.BoolVar(&noInteraction, "no-interaction", false, "Fail instead of prompting")

	f := rootCmd.Flags()
	f.String("frontend-dir", "", "Frontend directory inside the project (default from template, else \"frontend\")")
	f.Bool("skip-install", false, "Skip the frontend package install")
	f.BoolP("yes", "y", false, "Delete an existing target directory without asking")

	bindFlag(pf, "template-dir", config.KeyTemplateDir)
	bindFlag(pf, "log-level", config.KeyLogLevel)
	bindFlag(pf, "log-format", config.KeyLogFormat)
	bindFlag(f, "frontend-dir", config.KeyFrontendDir)
	bindFlag(f, "skip-install", config.KeySkipInstall)
	bindFlag(f, "yes", config.KeyAssumeYes)
}

func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
		panic(fmt.Sprintf("binding --%s: %v", name, err))
	}
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName() + " <target_dir>",
	Short: branding.Description(),
	Long: branding.DisplayName() + ` creates a new project in <target_dir> from the template
tree in this repository, then tidies Go modules, initializes git and installs
frontend dependencies.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          requireTarget,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()
		ui.ConfigureInteraction(noInteraction)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context(), buildOptions{
			TargetDir:     args[0],
			Settings:      config.Current(),
			NoInteraction: noInteraction,
		}, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// requireTarget prints usage when the target directory is missing.
func requireTarget(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return nil
	}
	_ = cmd.Usage()
	if len(args) == 0 {
		return errMissingTarget
	}
	return fmt.Errorf("expected one target directory, got %d arguments", len(args))
}

// Execute runs the root command with build info injected via ldflags. Any
// error has already been reported to stderr when it returns.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		reportError(os.Stderr, err)
	}
	return err
}

// reportError prints err once. Aborts are expected exits and get a plain
// notice instead of an error line.
func reportError(w io.Writer, err error) {
	if isAbort(err) {
		fmt.Fprintln(w, "Aborting")
		return
	}
	fmt.Fprintln(w, ui.ErrorMsg("%v", err))
}

func isAbort(err error) bool {
	return errors.Is(err, build.ErrAbortedByUser) ||
		errors.Is(err, prompt.ErrAborted) ||
		errors.Is(err, context.Canceled)
}
