// Package issuance runs the badge generation pipeline for one request:
// secrets, input resolution, identity hashing, credential assembly, signing,
// image retrieval, baking and the final write.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/bake"
	"github.com/capiscio/openbadges/pkg/catalog"
	"github.com/capiscio/openbadges/pkg/credential"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/capiscio/openbadges/pkg/fetch"
	"github.com/capiscio/openbadges/pkg/identity"
	"github.com/capiscio/openbadges/pkg/inputs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaltSecretName is the environment variable holding the recipient salt.
const SaltSecretName = "RECIPIENT_SALT"

// Config holds service-wide issuance settings.
type Config struct {
	// Format is used when neither the request nor the badge names one.
	Format credential.Kind

	// SignatureMode selects the JWS payload representation.
	SignatureMode crypto.PayloadMode

	// EmbedIssuer embeds the issuer profile in OB3 credentials.
	EmbedIssuer bool

	// Salt is the recipient salt. When empty it is looked up as
	// SaltSecretName in the secret source.
	Salt string
}

// Request is one badge issuance.
type Request struct {
	BadgeID        string
	RecipientEmail string

	// OutputDir defaults to the current directory.
	OutputDir string

	// Inputs are the caller-supplied claim values by input name.
	Inputs map[string]string

	// Format overrides the badge and service format when set.
	Format credential.Kind
}

// Result describes the written artifact.
type Result struct {
	Path         string
	CredentialID string
	Format       credential.Kind
	Token        string
	Resolved     inputs.Resolved
}

// Service issues badges from a catalog.
type Service struct {
	catalog *catalog.Catalog
	config  Config
	secrets SecretSource
	images  fetch.ImageFetcher
	clock   badge.Clock
	newID   func() string
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSecrets replaces the environment secret source.
func WithSecrets(src SecretSource) Option {
	return func(s *Service) {
		s.secrets = src
	}
}

// WithImageFetcher replaces the default image fetcher.
func WithImageFetcher(f fetch.ImageFetcher) Option {
	return func(s *Service) {
		s.images = f
	}
}

// WithClock fixes the issuance time source.
func WithClock(clock badge.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithIDGenerator replaces the UUID generator used for credential ids and
// output file names.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates an issuance service for cat.
func NewService(cat *catalog.Catalog, config Config, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		config:  config,
		secrets: EnvSecrets{},
		clock:   badge.SystemClock,
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.images == nil {
		s.images = fetch.NewImageFetcher(fetch.DefaultConfig(), s.logger)
	}
	return s
}

// Schema returns the input schema of a badge. The CLI uses it to register
// one flag per input.
func (s *Service) Schema(badgeID string) (*inputs.Schema, error) {
	b, err := s.catalog.Badge(badgeID)
	if err != nil {
		return nil, err
	}
	return inputs.NewSchema(b, s.catalog.GlobalInputs)
}

// Issue runs the full pipeline and writes <output_dir>/<badge_id>-<uuid>.png.
// Nothing is written unless every step succeeds.
func (s *Service) Issue(ctx context.Context, req Request) (*Result, error) {
	log := s.logger.With(zap.String("badge_id", req.BadgeID))

	// 1. Catalog lookups
	b, err := s.catalog.Badge(req.BadgeID)
	if err != nil {
		return nil, err
	}
	iss, err := s.catalog.Issuer(b.IssuerID)
	if err != nil {
		return nil, err
	}
	if req.RecipientEmail == "" {
		return nil, badge.Errorf(badge.ErrCodeMissingRequiredInput, "required input %q was not provided", badge.FieldRecipientEmail)
	}

	// 2. Secrets, before any credential work
	keyMaterial, err := requireSecret(s.secrets, iss.PrivateKeySecretName, "issuer private key")
	if err != nil {
		return nil, err
	}
	salt := s.config.Salt
	if salt == "" {
		if salt, err = requireSecret(s.secrets, SaltSecretName, "recipient salt"); err != nil {
			return nil, err
		}
	}
	key, err := crypto.ParsePrivateKey([]byte(keyMaterial))
	if err != nil {
		return nil, err
	}

	// 3. Resolve inputs
	schema, err := inputs.NewSchema(b, s.catalog.GlobalInputs)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	resolved, err := schema.Resolve(req.Inputs, now)
	if err != nil {
		return nil, err
	}

	// 4. Assemble and sign
	kind, err := s.formatFor(req, b)
	if err != nil {
		return nil, err
	}
	format, err := credential.NewFormat(kind, credential.Options{
		EmbedIssuer:   s.config.EmbedIssuer,
		SignatureMode: s.config.SignatureMode,
		NewID:         s.newID,
	})
	if err != nil {
		return nil, err
	}
	profile, err := s.catalog.Profile(b.IssuerID)
	if err != nil {
		return nil, err
	}
	cred, err := format.Assemble(credential.Input{
		RepositoryURL: s.catalog.RepositoryURL,
		IssuerID:      b.IssuerID,
		Issuer:        profile,
		BadgeID:       req.BadgeID,
		BadgeURL:      s.catalog.BadgeURL(req.BadgeID),
		Badge:         b,
		Resolved:      resolved,
		Recipient:     identity.NewRecipient(req.RecipientEmail, salt),
		IssuedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	signed, err := format.Sign(cred, key)
	if err != nil {
		return nil, err
	}
	log.Debug("credential signed", zap.String("credential_id", cred.ID), zap.String("format", string(kind)))

	// 5. Bake into the source image
	baked, err := s.bake(ctx, b, signed)
	if err != nil {
		return nil, err
	}

	// 6. Write
	path, err := writeAtomic(outputDir(req.OutputDir), fmt.Sprintf("%s-%s.png", req.BadgeID, s.newID()), baked)
	if err != nil {
		return nil, err
	}
	log.Info("badge issued", zap.String("path", path), zap.String("credential_id", cred.ID))

	return &Result{
		Path:         path,
		CredentialID: cred.ID,
		Format:       kind,
		Token:        signed.Token,
		Resolved:     resolved,
	}, nil
}

func (s *Service) formatFor(req Request, b *catalog.Badge) (credential.Kind, error) {
	switch {
	case req.Format != "":
		return credential.ParseKind(string(req.Format))
	case b.Format != "":
		return credential.ParseKind(b.Format)
	default:
		return credential.ParseKind(string(s.config.Format))
	}
}

func (s *Service) bake(ctx context.Context, b *catalog.Badge, signed *credential.Signed) ([]byte, error) {
	img, err := s.images.Fetch(ctx, s.catalog.ImageLocation(b))
	if err != nil {
		return nil, err
	}
	defer func() { _ = img.Close() }()

	src, err := img.Bytes()
	if err != nil {
		return nil, err
	}
	return bake.Embed(src, signed.Keyword, signed.Token)
}

func outputDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// writeAtomic writes data to dir/name through a temporary file in dir, so a
// failed run never leaves a partial PNG behind.
func writeAtomic(dir, name string, data []byte) (_ string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to create output directory %s", dir), err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", badge.WrapError(badge.ErrCodeIO, "failed to create temporary output file", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return "", badge.WrapError(badge.ErrCodeIO, "failed to write output file", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", badge.WrapError(badge.ErrCodeIO, "failed to set output file mode", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to write %s", path), err)
	}
	return path, nil
}
