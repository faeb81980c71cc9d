package main

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/bake"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/capiscio/openbadges/pkg/fetch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verifyKeyFile string
	verifyQuiet   bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <badge.png> [badge.png...]",
	Short: "Verify the credentials baked into badge images",
	Long: `Extract the credential baked into a PNG and verify its signature.

The public key is read from --key (PEM, JWK or CryptographicKey JSON). Without
--key it is fetched from the kid of the JWS header, which points at the
issuer's published CryptographicKey document. Key documents are fetched once
per run, however many badges share them.`,
	Example: `  openbadges verify out/foo-1b9d6bcd.png --key public/acme-key.json

  # Verify every badge in out/ against the published keys
  openbadges verify out/*.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerifyAll(cmd.Context(), args, cmd.OutOrStdout(), fetch.NewDocumentFetcher(settings.FetchTimeout))
	},
}

// runVerifyAll verifies every path and fails if any of them failed.
func runVerifyAll(ctx context.Context, paths []string, out io.Writer, docs fetch.DocumentFetcher) error {
	var failed int
	for _, path := range paths {
		if len(paths) > 1 {
			fmt.Fprintf(out, "🔍 %s\n", path)
		}
		if err := runVerify(ctx, path, out, docs); err != nil {
			if len(paths) == 1 {
				return err
			}
			reportError(out, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d badges failed verification", failed, len(paths))
	}
	return nil
}

func runVerify(ctx context.Context, path string, out io.Writer, docs fetch.DocumentFetcher) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to read %s", path), err)
	}
	keyword, token, err := bake.ExtractAny(data, bake.KeywordOB3, bake.KeywordOB2)
	if err != nil {
		return err
	}

	header, err := crypto.DecodeHeader(token)
	if err != nil {
		return err
	}
	pub, err := verificationKey(ctx, header, docs)
	if err != nil {
		return err
	}

	verified, err := crypto.VerifyJWS(token, pub)
	if err != nil {
		fmt.Fprintf(out, "❌ Signature INVALID: %v\n", err)
		return fmt.Errorf("verification failed")
	}
	fmt.Fprintf(out, "✅ Signature valid (%s, %s payload)\n", keyword, verified.Mode)

	claims, err := verified.Claims()
	if err != nil {
		return err
	}
	if exp, ok := claims["exp"].(float64); ok {
		if expiry := time.Unix(int64(exp), 0).UTC(); time.Now().After(expiry) {
			fmt.Fprintf(out, "⚠️  Credential expired at %s\n", badge.FormatTimestamp(expiry))
		}
	}

	if !verifyQuiet {
		pretty, err := json.MarshalIndent(claims, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(pretty))
	}
	return nil
}

func verificationKey(ctx context.Context, header map[string]any, docs fetch.DocumentFetcher) (*rsa.PublicKey, error) {
	if verifyKeyFile != "" {
		data, err := os.ReadFile(verifyKeyFile)
		if err != nil {
			return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to read key %s", verifyKeyFile), err)
		}
		return crypto.ParsePublicKey(data)
	}

	kid, _ := header["kid"].(string)
	if !fetch.IsRemote(kid) {
		return nil, fmt.Errorf("token has no fetchable kid; pass --key")
	}
	logger.Debug("fetching verification key", zap.String("kid", kid))
	doc, err := docs.Fetch(ctx, kid)
	if err != nil {
		return nil, err
	}
	return crypto.ParsePublicKey(doc)
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyKeyFile, "key", "", "Public key file (PEM, JWK or CryptographicKey JSON)")
	verifyCmd.Flags().BoolVarP(&verifyQuiet, "quiet", "q", false, "Do not print the decoded payload")
}
