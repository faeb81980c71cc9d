// Package config loads CLI settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/capiscio/openbadges/pkg/credential"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/capiscio/openbadges/pkg/fetch"
	"github.com/capiscio/openbadges/pkg/issuance"
	"github.com/capiscio/openbadges/pkg/logging"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix of every setting.
const Prefix = "OPENBADGES"

// Settings are the process-wide options. Every field can be set through
// OPENBADGES_<NAME>; the salt is also read from plain RECIPIENT_SALT.
type Settings struct {
	// RecipientSalt is appended to recipient emails before hashing.
	RecipientSalt string `envconfig:"RECIPIENT_SALT"`

	// Catalog is the path of the badge catalog.
	Catalog string `envconfig:"CATALOG" default:"badges.yml"`

	// Format is the default credential format: ob2 or ob3.
	Format string `envconfig:"FORMAT" default:"ob3"`

	// SignatureMode is the JWS payload mode: compact or unencoded.
	SignatureMode string `envconfig:"SIGNATURE_MODE" default:"compact"`

	// EmbedIssuer embeds the issuer profile in OB3 credentials.
	EmbedIssuer bool `envconfig:"EMBED_ISSUER" default:"true"`

	// FetchTimeout bounds the source image download.
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`

	// MaxImageSize is the largest source image accepted, in bytes.
	MaxImageSize int64 `envconfig:"MAX_IMAGE_SIZE" default:"5242880"`

	// Workflow is the GitHub Actions workflow kept in sync with the catalog.
	Workflow string `envconfig:"WORKFLOW" default:".github/workflows/generate-badge.yml"`

	// PublicDir receives the generated issuer profiles.
	PublicDir string `envconfig:"PUBLIC_DIR" default:"public"`

	Logging logging.Config `envconfig:"LOG"`
}

// Load reads the settings from the environment and validates them.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &s, nil
}

// Validate checks enumerations and limits.
func (s *Settings) Validate() error {
	if _, err := credential.ParseKind(s.Format); err != nil {
		return err
	}
	if _, err := crypto.ParsePayloadMode(s.SignatureMode); err != nil {
		return err
	}
	if s.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", s.FetchTimeout)
	}
	if s.MaxImageSize <= 0 {
		return fmt.Errorf("max image size must be positive, got %d", s.MaxImageSize)
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog path is required")
	}
	return nil
}

// Issuance returns the issuance service configuration. Validate must have
// succeeded.
func (s *Settings) Issuance() issuance.Config {
	kind, _ := credential.ParseKind(s.Format)
	mode, _ := crypto.ParsePayloadMode(s.SignatureMode)
	return issuance.Config{
		Format:        kind,
		SignatureMode: mode,
		EmbedIssuer:   s.EmbedIssuer,
		Salt:          s.RecipientSalt,
	}
}

// Fetch returns the image fetcher configuration.
func (s *Settings) Fetch() fetch.Config {
	return fetch.Config{
		Timeout:      s.FetchTimeout,
		MaxImageSize: s.MaxImageSize,
	}
}
