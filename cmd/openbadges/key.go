package main

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/capiscio/openbadges/pkg/catalog"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"
)

var (
	keyOutPrivate string
	keyOutPublic  string
	keyOutJWK     string
	keyIssuer     string
	keyCatalog    string
	keyBits       int
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage issuer signing keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new RSA issuer key pair",
	Long: `Generate a new RSA key pair for signing badges (RS256).

Outputs:
  - Private key as PKCS#8 PEM. Store it in the secret named by the issuer's
    private_key_secret_name; never commit it.
  - Public key as an Open Badges CryptographicKey document, to publish at
    the issuer's publicKey URL.
  - Public key as a JWK (optional).

With --issuer, the key document id and owner are taken from the catalog.`,
	Example: `  # Generate keys with default names
  openbadges key gen

  # Generate the key for issuer acme and publish it where badges.yml points
  openbadges key gen --issuer acme --out-pub public/acme-key.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runKeyGen(cmd.OutOrStdout())
	},
}

// cryptographicKey is the OB2 CryptographicKey document.
type cryptographicKey struct {
	Context      string `json:"@context"`
	Type         string `json:"type"`
	ID           string `json:"id,omitempty"`
	Owner        string `json:"owner,omitempty"`
	PublicKeyPem string `json:"publicKeyPem"`
}

func newCryptographicKey(pub *rsa.PublicKey, id, owner string) (*cryptographicKey, error) {
	pemBytes, err := crypto.EncodePublicKeyPEM(pub)
	if err != nil {
		return nil, err
	}
	return &cryptographicKey{
		Context:      catalog.OB2Context,
		Type:         "CryptographicKey",
		ID:           id,
		Owner:        owner,
		PublicKeyPem: string(pemBytes),
	}, nil
}

func runKeyGen(out io.Writer) error {
	// 1. Resolve key id and owner
	var keyID, owner string
	if keyIssuer != "" {
		cat, err := loadCatalog(keyCatalog)
		if err != nil {
			return err
		}
		profile, err := cat.Profile(keyIssuer)
		if err != nil {
			return err
		}
		keyID, owner = profile.PublicKey(), profile.ID()
	}

	// 2. Generate Key Pair
	priv, err := crypto.GenerateKey(keyBits)
	if err != nil {
		return err
	}

	// 3. Save Private Key
	privPEM, err := crypto.EncodePrivateKeyPEM(priv)
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyOutPrivate, privPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	fmt.Fprintf(out, "✅ Private Key saved to %s\n", keyOutPrivate)

	// 4. Save CryptographicKey document
	doc, err := newCryptographicKey(&priv.PublicKey, keyID, owner)
	if err != nil {
		return err
	}
	docBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyOutPublic, append(docBytes, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	fmt.Fprintf(out, "✅ Public Key saved to %s\n", keyOutPublic)

	// 5. Save JWK
	if keyOutJWK != "" {
		pubJwk := jose.JSONWebKey{
			Key:       &priv.PublicKey,
			KeyID:     keyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}
		jwkBytes, err := json.MarshalIndent(pubJwk, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(keyOutJWK, append(jwkBytes, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write JWK: %w", err)
		}
		fmt.Fprintf(out, "✅ Public JWK saved to %s\n", keyOutJWK)
	}

	if keyID != "" {
		fmt.Fprintf(out, "🔑 Publish %s at %s\n", keyOutPublic, keyID)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd)

	keyGenCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "issuer.key.pem", "Output path for private key (PKCS#8 PEM)")
	keyGenCmd.Flags().StringVar(&keyOutPublic, "out-pub", "issuer-key.json", "Output path for public key (CryptographicKey JSON)")
	keyGenCmd.Flags().StringVar(&keyOutJWK, "out-jwk", "", "Output path for public key (JWK format, optional)")
	keyGenCmd.Flags().StringVar(&keyIssuer, "issuer", "", "Catalog issuer id used for the key id and owner")
	keyGenCmd.Flags().StringVar(&keyCatalog, "catalog", "", "Path to the badge catalog (default: OPENBADGES_CATALOG)")
	keyGenCmd.Flags().IntVar(&keyBits, "bits", crypto.MinRSAKeyBits, "RSA modulus size")
}
