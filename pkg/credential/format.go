// Package credential assembles and signs Open Badge credentials.
//
// The format (Open Badges 2.0 assertion or Open Badges 3.0 VC-JWT) is chosen
// once per request through NewFormat; the rest of the pipeline only talks to
// the Format interface.
package credential

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/catalog"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/capiscio/openbadges/pkg/identity"
	"github.com/capiscio/openbadges/pkg/inputs"
	"github.com/google/uuid"
)

// Kind names a credential format.
type Kind string

const (
	// KindOB2 is an Open Badges 2.0 signed assertion.
	KindOB2 Kind = "ob2"
	// KindOB3 is an Open Badges 3.0 OpenBadgeCredential secured as a VC-JWT.
	KindOB3 Kind = "ob3"
)

// ParseKind validates a format name. Empty selects KindOB3.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindOB3:
		return KindOB3, nil
	case KindOB2:
		return KindOB2, nil
	default:
		return "", badge.Errorf(badge.ErrCodeConfiguration, "unknown credential format %q (want ob2 or ob3)", s)
	}
}

// Format is the capability set of one credential format.
type Format interface {
	// Kind returns the format name.
	Kind() Kind

	// Keyword is the PNG iTXt keyword the signed credential is baked under.
	Keyword() string

	// IdentityScheme is the representation of the hashed recipient.
	IdentityScheme() identity.Scheme

	// Assemble builds the unsigned credential document.
	Assemble(in Input) (*Credential, error)

	// Sign produces the compact JWS of an assembled credential.
	Sign(c *Credential, key *rsa.PrivateKey) (*Signed, error)
}

// Options tune format behavior.
type Options struct {
	// EmbedIssuer embeds the full issuer profile in OB3 credentials instead
	// of referencing it by URL.
	EmbedIssuer bool

	// SignatureMode selects the JWS payload representation.
	SignatureMode crypto.PayloadMode

	// NewID returns a fresh unique id. Defaults to a random UUID.
	NewID func() string
}

// NewFormat returns the implementation for kind.
func NewFormat(kind Kind, opts Options) (Format, error) {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.SignatureMode == "" {
		opts.SignatureMode = crypto.ModeCompact
	}
	switch kind {
	case KindOB2:
		return &ob2Format{opts: opts}, nil
	case KindOB3:
		return &ob3Format{opts: opts}, nil
	default:
		return nil, badge.Errorf(badge.ErrCodeConfiguration, "unknown credential format %q", kind)
	}
}

// Input is everything a format needs to build one credential.
type Input struct {
	// RepositoryURL is the catalog's repository_url, without trailing slash.
	RepositoryURL string

	// IssuerID is the catalog key of the issuer.
	IssuerID string

	// Issuer is the public profile of the issuer.
	Issuer catalog.Profile

	// BadgeID is the catalog key of the badge.
	BadgeID string

	// BadgeURL is the public id of the badge class or achievement.
	BadgeURL string

	// Badge is the definition with placeholders already substituted.
	Badge *catalog.Badge

	// Resolved holds the final input values.
	Resolved inputs.Resolved

	// Recipient is the hashed recipient identity.
	Recipient identity.Recipient

	// IssuedAt is the issuance instant.
	IssuedAt time.Time
}

func (in Input) validate() error {
	switch {
	case in.Badge == nil:
		return badge.NewError(badge.ErrCodeConfiguration, "credential input has no badge")
	case in.Issuer == nil:
		return badge.NewError(badge.ErrCodeConfiguration, "credential input has no issuer")
	case in.Recipient.Digest == "":
		return badge.NewError(badge.ErrCodeConfiguration, "credential input has no recipient")
	}
	return nil
}

// claims returns the resolved inputs that become credential claims.
func (in Input) claims() map[string]string {
	out := make(map[string]string, len(in.Resolved))
	for name, value := range in.Resolved {
		if badge.ReservedFields[name] || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// expiry parses the resolved expires input, if any.
func (in Input) expiry() (*time.Time, error) {
	value, ok := in.Resolved[badge.FieldExpires]
	if !ok || value == "" {
		return nil, nil
	}
	t, err := badge.ParseTimestamp(value)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeInvalidDateFormat,
			fmt.Sprintf("input %q has invalid date %q", badge.FieldExpires, value), err)
	}
	return &t, nil
}

// Credential is an assembled, unsigned credential.
type Credential struct {
	// Kind is the format that built the document.
	Kind Kind

	// ID is the assertion or credential id.
	ID string

	// Issuer is the issuer profile id.
	Issuer string

	// KeyID references the issuer public key.
	KeyID string

	// Subject is the hashed recipient as it appears in the document.
	Subject string

	// IssuedAt is the issuance instant.
	IssuedAt time.Time

	// ExpiresAt is set for badges that expire.
	ExpiresAt *time.Time

	// Document is the JSON document.
	Document map[string]any
}

// Signed is a credential together with its compact JWS.
type Signed struct {
	Credential *Credential
	Token      string
	Keyword    string
}
