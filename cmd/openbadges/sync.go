package main

import (
	"fmt"
	"io"

	"github.com/capiscio/openbadges/pkg/workflow"
	"github.com/spf13/cobra"
)

var (
	syncCatalog      string
	syncWorkflow     string
	syncPublicDir    string
	syncSkipWorkflow bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Update the generation workflow and issuer profiles from the catalog",
	Long: `Synchronize repository files with the badge catalog.

1. Rebuilds on.workflow_dispatch.inputs of the generation workflow: a badge
   selector, the recipient email, then every input used by a badge that is
   declared in global_inputs. The file is only written when it changes.
2. Writes public/<issuer_id>-issuer.json for every issuer, without the
   private key secret name.`,
	Example: `  # Use the defaults (badges.yml, .github/workflows/generate-badge.yml, public/)
  openbadges sync

  # Only regenerate issuer profiles
  openbadges sync --skip-workflow`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSync(cmd.OutOrStdout())
	},
}

func runSync(out io.Writer) error {
	cat, err := loadCatalog(syncCatalog)
	if err != nil {
		return err
	}

	if !syncSkipWorkflow {
		path := syncWorkflow
		if path == "" {
			path = settings.Workflow
		}
		res, err := workflow.Sync(path, cat)
		if err != nil {
			return err
		}
		if res.Changed {
			fmt.Fprintf(out, "✅ Updated %s (%d inputs)\n", path, len(res.Inputs))
		} else {
			fmt.Fprintf(out, "✅ %s is already up to date\n", path)
		}
	}

	dir := syncPublicDir
	if dir == "" {
		dir = settings.PublicDir
	}
	written, err := cat.WriteIssuerFiles(dir)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintf(out, "✅ Generated issuer file %s\n", path)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncCatalog, "catalog", "", "Path to the badge catalog (default: OPENBADGES_CATALOG)")
	syncCmd.Flags().StringVar(&syncWorkflow, "workflow", "", "Workflow file to update (default: OPENBADGES_WORKFLOW)")
	syncCmd.Flags().StringVar(&syncPublicDir, "public-dir", "", "Directory for issuer profiles (default: OPENBADGES_PUBLIC_DIR)")
	syncCmd.Flags().BoolVar(&syncSkipWorkflow, "skip-workflow", false, "Do not touch the workflow file")
}
