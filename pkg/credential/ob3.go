package credential

import (
	"crypto/rsa"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/bake"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/capiscio/openbadges/pkg/identity"
	"github.com/go-jose/go-jose/v4/jwt"
)

// JSON-LD contexts of an OpenBadgeCredential.
const (
	VCContext  = "https://www.w3.org/ns/credentials/v2"
	OB3Context = "https://purl.imsglobal.org/spec/ob/v3p0/context-3.0.3.json"
)

// JWTType is the typ header of a VC-JWT.
const JWTType = "vc+ld+jwt"

type ob3Format struct {
	opts Options
}

type ob3Image struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type ob3Achievement struct {
	ID          string      `json:"id"`
	Type        []string    `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Criteria    ob2Criteria `json:"criteria"`
	Image       ob3Image    `json:"image"`
}

type ob3IdentityObject struct {
	Type         string `json:"type"`
	IdentityHash string `json:"identityHash"`
	IdentityType string `json:"identityType"`
	Hashed       bool   `json:"hashed"`
	Salt         string `json:"salt"`
}

type ob3Subject struct {
	ID           string              `json:"id"`
	Type         []string            `json:"type"`
	Identifier   []ob3IdentityObject `json:"identifier"`
	Achievement  ob3Achievement      `json:"achievement"`
	CustomFields map[string]string   `json:"customFields,omitempty"`
}

type ob3Credential struct {
	Context           []string   `json:"@context"`
	Type              []string   `json:"type"`
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Issuer            any        `json:"issuer"`
	ValidFrom         string     `json:"validFrom"`
	ValidUntil        string     `json:"validUntil,omitempty"`
	CredentialSubject ob3Subject `json:"credentialSubject"`
}

func (f *ob3Format) Kind() Kind { return KindOB3 }
func (f *ob3Format) Keyword() string { return bake.KeywordOB3 }
func (f *ob3Format) IdentityScheme() identity.Scheme { return identity.SchemeURN }

// Assemble builds an OpenBadgeCredential. Resolved inputs other than expires
// are carried in credentialSubject.customFields.
func (f *ob3Format) Assemble(in Input) (*Credential, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	expiresAt, err := in.expiry()
	if err != nil {
		return nil, err
	}

	custom := in.claims()
	delete(custom, badge.FieldExpires)
	if len(custom) == 0 {
		custom = nil
	}

	var issuer any = in.Issuer.ID()
	if f.opts.EmbedIssuer {
		profile := in.Issuer.Clone()
		profile["type"] = []string{"Profile"}
		issuer = profile
	}

	id := "urn:uuid:" + f.opts.NewID()
	subject := in.Recipient.In(f.IdentityScheme())
	vc := ob3Credential{
		Context:   []string{VCContext, OB3Context},
		Type:      []string{"VerifiableCredential", "OpenBadgeCredential"},
		ID:        id,
		Name:      in.Badge.Name,
		Issuer:    issuer,
		ValidFrom: badge.FormatTimestamp(in.IssuedAt),
		CredentialSubject: ob3Subject{
			ID:   subject,
			Type: []string{"AchievementSubject"},
			Identifier: []ob3IdentityObject{{
				Type:         "IdentityObject",
				IdentityHash: in.Recipient.In(identity.SchemeOB2),
				IdentityType: "emailAddress",
				Hashed:       true,
				Salt:         in.Recipient.Salt,
			}},
			Achievement: ob3Achievement{
				ID:          in.BadgeURL,
				Type:        []string{"Achievement"},
				Name:        in.Badge.Name,
				Description: in.Badge.Description,
				Criteria:    ob2Criteria{Narrative: in.Badge.Criteria},
				Image:       ob3Image{ID: in.Badge.Image, Type: "Image"},
			},
			CustomFields: custom,
		},
	}
	if expiresAt != nil {
		// Verbatim, so the caller's value round-trips exactly.
		vc.ValidUntil = in.Resolved[badge.FieldExpires]
	}

	doc, err := crypto.MergeObjects(vc)
	if err != nil {
		return nil, err
	}

	return &Credential{
		Kind:      KindOB3,
		ID:        id,
		Issuer:    in.Issuer.ID(),
		KeyID:     in.Issuer.PublicKey(),
		Subject:   subject,
		IssuedAt:  in.IssuedAt,
		ExpiresAt: expiresAt,
		Document:  doc,
	}, nil
}

// Claims returns the registered JWT claims of an assembled credential.
func Claims(c *Credential) jwt.Claims {
	claims := jwt.Claims{
		Issuer:    c.Issuer,
		Subject:   c.Subject,
		ID:        c.ID,
		NotBefore: jwt.NewNumericDate(c.IssuedAt),
	}
	if c.ExpiresAt != nil {
		claims.Expiry = jwt.NewNumericDate(*c.ExpiresAt)
	}
	return claims
}

// Sign signs the credential merged with its registered claims as a VC-JWT.
func (f *ob3Format) Sign(c *Credential, key *rsa.PrivateKey) (*Signed, error) {
	merged, err := crypto.MergeObjects(c.Document, Claims(c))
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeSigning, "failed to build JWT claims", err)
	}
	payload, err := crypto.CanonicalJSON(merged)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeSigning, "failed to canonicalize credential", err)
	}
	token, err := crypto.SignJWS(payload, key, crypto.JWSOptions{
		Type:  JWTType,
		KeyID: c.KeyID,
		Mode:  f.opts.SignatureMode,
	})
	if err != nil {
		return nil, err
	}
	return &Signed{Credential: c, Token: token, Keyword: f.Keyword()}, nil
}
