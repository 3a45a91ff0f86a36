package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sysmanage-labs/projbuilder/internal/config"
	"github.com/sysmanage-labs/projbuilder/internal/doctor"
	"github.com/sysmanage-labs/projbuilder/internal/manifest"
	"github.com/sysmanage-labs/projbuilder/internal/setup"
	"github.com/sysmanage-labs/projbuilder/internal/vcs"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the tools a build needs",
	Long: `Check that git, go and npm are installed, along with any other tools the
template's template.yaml requires, and that their versions satisfy its constraints.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		reqs := templateRequirements(ctx, out, config.Current().TemplateDir)
		results := doctor.New().Check(ctx, reqs)
		if failed := doctor.Report(out, results); failed > 0 {
			return fmt.Errorf("%d tool check(s) failed", failed)
		}
		return nil
	},
}

// templateRequirements loads the tool constraints of the configured template.
// Problems are printed as warnings; the default tool checks still run.
func templateRequirements(ctx context.Context, w io.Writer, templateDir string) []manifest.Requirement {
	fmt.Fprintln(w, "Template check:")

	root, err := vcs.RepoRoot(ctx, "")
	if err != nil {
		fmt.Fprintf(w, "  [WARN] Could not resolve repository root: %v\n", err)
		return nil
	}
	templateRoot := setup.TemplateRoot(root, templateDir)

	tmpl, err := manifest.Load(templateRoot)
	if err != nil {
		fmt.Fprintf(w, "  [FAIL] %v\n", err)
		return nil
	}
	if tmpl == nil {
		fmt.Fprintf(w, "  [INFO] No %s in %s\n", manifest.FileName, templateRoot)
		return nil
	}

	if len(tmpl.Issues) == 0 {
		fmt.Fprintf(w, "  [ OK ] Valid manifest: %s\n", tmpl.Name)
	} else {
		fmt.Fprintf(w, "  [WARN] %d validation issue(s):\n", len(tmpl.Issues))
		for _, issue := range tmpl.Issues {
			fmt.Fprintf(w, "    - %s\n", issue)
		}
	}

	reqs, err := tmpl.Requirements()
	if err != nil {
		fmt.Fprintf(w, "  [WARN] %v\n", err)
	}
	return reqs
}
