// Package main is the entry point for the openbadges CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/catalog"
	"github.com/capiscio/openbadges/pkg/config"
	"github.com/capiscio/openbadges/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	settings *config.Settings
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "openbadges",
	Short: "Open Badge credential generator",
	Long: `Issues signed Open Badges from a declarative badge catalog.

Credentials are either Open Badges 2.0 signed assertions or Open Badges 3.0
VC-JWTs, baked into the badge PNG. The catalog (badges.yml) also drives the
generation workflow form and the published issuer profiles.

Settings are read from OPENBADGES_* environment variables; the recipient
salt comes from RECIPIENT_SALT and each issuer's private key from the
variable named by its private_key_secret_name.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		s, err := config.Load()
		if err != nil {
			return err
		}
		l, err := logging.NewLogger(s.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		settings, logger = s, l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

// loadCatalog loads the catalog at path, or the configured one when path is empty.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		path = settings.Catalog
	}
	logger.Debug("loading catalog", zap.String("path", path))
	return catalog.Load(path)
}

// reportError prints err the way every command failure is shown.
func reportError(w io.Writer, err error) {
	if _, ok := badge.AsError(err); ok {
		fmt.Fprintf(w, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(w, "❌ Error: %v\n", err)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}
