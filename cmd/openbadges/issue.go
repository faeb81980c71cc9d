package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/credential"
	"github.com/capiscio/openbadges/pkg/fetch"
	"github.com/capiscio/openbadges/pkg/issuance"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// issueFlags are the fixed flags of the issue command.
type issueFlags struct {
	badgeID        string
	recipientEmail string
	outputDir      string
	format         string
	catalog        string
	help           bool
}

func (f *issueFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.badgeID, badge.FieldBadgeID, "", "Badge to issue (catalog id)")
	fs.StringVar(&f.recipientEmail, badge.FieldRecipientEmail, "", "Recipient email; only its salted hash is stored")
	fs.StringVar(&f.outputDir, badge.FieldOutputDir, ".", "Directory for the baked PNG")
	fs.StringVar(&f.format, "format", "", "Credential format: ob2 or ob3 (default: badge format, then OPENBADGES_FORMAT)")
	fs.StringVar(&f.catalog, "catalog", "", "Path to the badge catalog (default: OPENBADGES_CATALOG)")
	fs.BoolVarP(&f.help, "help", "h", false, "Help for issue")
}

var issueCmd = &cobra.Command{
	Use:   "issue --badge_id ID --recipient_email EMAIL [--<input>=VALUE ...]",
	Short: "Issue a badge and bake it into a PNG",
	Long: `Issue a signed badge and bake it into the badge image.

Besides the fixed flags, every input declared by the badge (and the implicit
--expires of expiring badges) is accepted as --<input>=VALUE. Date inputs
use the format YYYY-MM-DDTHH:MM:SSZ.

Fixed flags:
  --badge_id string          Badge to issue (catalog id)
  --recipient_email string   Recipient email; only its salted hash is stored
  --output_dir string        Directory for the baked PNG (default ".")
  --format string            Credential format: ob2 or ob3
  --catalog string           Path to the badge catalog`,
	Example: `  # Issue an OB3 credential
  openbadges issue --badge_id foo --recipient_email ada@example.com --course_name "Go 101"

  # Issue an expiring badge into ./out
  openbadges issue --badge_id bar --recipient_email ada@example.com \
    --expires 2025-01-01T00:00:00Z --output_dir out`,
	// Inputs are only known once the catalog is loaded; runIssue parses flags itself.
	DisableFlagParsing: true,
}

func runIssue(ctx context.Context, args []string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Fixed flags, unknown ones ignored
	var fixed issueFlags
	pre := pflag.NewFlagSet("issue", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	fixed.register(pre)
	if err := pre.Parse(args); err != nil {
		return err
	}
	if fixed.help {
		return issueCmd.Help()
	}
	if fixed.badgeID == "" {
		return badge.Errorf(badge.ErrCodeMissingRequiredInput, "required input %q was not provided", badge.FieldBadgeID)
	}

	// 2. Catalog and badge schema
	cat, err := loadCatalog(fixed.catalog)
	if err != nil {
		return err
	}
	svc := issuance.NewService(cat, settings.Issuance(),
		issuance.WithImageFetcher(fetch.NewImageFetcher(settings.Fetch(), logger)),
		issuance.WithLogger(logger),
	)
	schema, err := svc.Schema(fixed.badgeID)
	if err != nil {
		return err
	}

	// 3. Strict parse with one flag per input
	var final issueFlags
	fs := pflag.NewFlagSet("issue", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	final.register(fs)
	values := make(map[string]*string)
	for _, name := range schema.UserNames() {
		if fs.Lookup(name) != nil {
			return badge.Errorf(badge.ErrCodeConfiguration, "input %q collides with a command flag", name)
		}
		field, _ := schema.Field(name)
		values[name] = fs.String(name, "", field.Description)
	}
	if err := fs.Parse(args); err != nil {
		return badge.WrapError(badge.ErrCodeUnknownInput, fmt.Sprintf("invalid arguments for badge %q", fixed.badgeID), err)
	}
	if fs.NArg() > 0 {
		return badge.Errorf(badge.ErrCodeUnknownInput, "unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	supplied := make(map[string]string)
	for name, v := range values {
		if fs.Changed(name) {
			supplied[name] = *v
		}
	}

	req := issuance.Request{
		BadgeID:        final.badgeID,
		RecipientEmail: final.recipientEmail,
		OutputDir:      final.outputDir,
		Inputs:         supplied,
	}
	if final.format != "" {
		kind, err := credential.ParseKind(final.format)
		if err != nil {
			return err
		}
		req.Format = kind
	}

	// 4. Issue
	fmt.Fprintf(out, "🏅 Issuing badge %s\n", req.BadgeID)
	res, err := svc.Issue(ctx, req)
	if err != nil {
		return err
	}

	for _, name := range res.Resolved.Names() {
		fmt.Fprintf(out, "   %s = %s\n", name, res.Resolved[name])
	}
	fmt.Fprintf(out, "✅ Badge baked to %s\n", res.Path)
	fmt.Fprintf(out, "🔑 Credential ID: %s (%s)\n", res.CredentialID, res.Format)
	return nil
}

func init() {
	// Assigned here: runIssue refers back to issueCmd for --help.
	issueCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runIssue(cmd.Context(), args, cmd.OutOrStdout())
	}
	rootCmd.AddCommand(issueCmd)
}
