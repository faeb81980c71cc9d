package credential

import (
	"crypto/rsa"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/bake"
	"github.com/capiscio/openbadges/pkg/catalog"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/capiscio/openbadges/pkg/identity"
)

type ob2Format struct {
	opts Options
}

type ob2Recipient struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
	Hashed   bool   `json:"hashed"`
	Salt     string `json:"salt"`
}

type ob2Criteria struct {
	Narrative string `json:"narrative"`
}

type ob2BadgeClass struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Criteria    ob2Criteria     `json:"criteria"`
	Issuer      catalog.Profile `json:"issuer"`
}

type ob2Verification struct {
	Type    string `json:"type"`
	Creator string `json:"creator"`
}

type ob2Assertion struct {
	Context      string          `json:"@context"`
	Type         string          `json:"type"`
	ID           string          `json:"id"`
	Recipient    ob2Recipient    `json:"recipient"`
	Badge        ob2BadgeClass   `json:"badge"`
	Verification ob2Verification `json:"verification"`
	IssuedOn     string          `json:"issuedOn"`
}

func (f *ob2Format) Kind() Kind { return KindOB2 }
func (f *ob2Format) Keyword() string { return bake.KeywordOB2 }
func (f *ob2Format) IdentityScheme() identity.Scheme { return identity.SchemeOB2 }

// Assemble builds an OB2 Assertion. Resolved inputs are added as top-level
// properties; they never replace the assertion's own fields.
func (f *ob2Format) Assemble(in Input) (*Credential, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	expiresAt, err := in.expiry()
	if err != nil {
		return nil, err
	}

	id := in.RepositoryURL + "/assertions/" + f.opts.NewID() + ".json"
	subject := in.Recipient.In(f.IdentityScheme())
	assertion := ob2Assertion{
		Context: catalog.OB2Context,
		Type:    "Assertion",
		ID:      id,
		Recipient: ob2Recipient{
			Type:     "email",
			Identity: subject,
			Hashed:   true,
			Salt:     in.Recipient.Salt,
		},
		Badge: ob2BadgeClass{
			Type:        "BadgeClass",
			ID:          in.BadgeURL,
			Name:        in.Badge.Name,
			Description: in.Badge.Description,
			Image:       in.Badge.Image,
			Criteria:    ob2Criteria{Narrative: in.Badge.Criteria},
			Issuer:      in.Issuer,
		},
		Verification: ob2Verification{
			Type:    "SignedBadge",
			Creator: in.Issuer.PublicKey(),
		},
		IssuedOn: badge.FormatTimestamp(in.IssuedAt),
	}

	doc, err := crypto.MergeObjects(in.claims(), assertion)
	if err != nil {
		return nil, err
	}

	return &Credential{
		Kind:      KindOB2,
		ID:        id,
		Issuer:    in.Issuer.ID(),
		KeyID:     in.Issuer.PublicKey(),
		Subject:   subject,
		IssuedAt:  in.IssuedAt,
		ExpiresAt: expiresAt,
		Document:  doc,
	}, nil
}

// Sign signs the canonical assertion JSON.
func (f *ob2Format) Sign(c *Credential, key *rsa.PrivateKey) (*Signed, error) {
	payload, err := crypto.CanonicalJSON(c.Document)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeSigning, "failed to canonicalize assertion", err)
	}
	token, err := crypto.SignJWS(payload, key, crypto.JWSOptions{
		KeyID: c.KeyID,
		Mode:  f.opts.SignatureMode,
	})
	if err != nil {
		return nil, err
	}
	return &Signed{Credential: c, Token: token, Keyword: f.Keyword()}, nil
}
