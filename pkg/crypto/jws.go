package crypto

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/go-jose/go-jose/v4"
)

// PayloadMode selects how the JWS payload is represented.
//
// The two modes sign different bytes for the same claims, so a token signed
// in one mode never verifies as the other.
type PayloadMode string

const (
	// ModeCompact is the standard compact JWS: the payload is base64url
	// encoded and the signature covers header.base64url(payload).
	ModeCompact PayloadMode = "compact"

	// ModeUnencoded is RFC 7797: the header declares b64=false with
	// crit=["b64"], the signature covers header.payload over the raw JSON,
	// and the token is serialized as header.<raw json>.signature.
	//
	// RFC 7797 section 5.2 does not allow a payload containing '.' in the
	// compact form, and credential JSON always has some (URLs). Generic JWS
	// libraries split such tokens on the wrong dot; VerifyJWS splits on the
	// first and last one instead. Use ModeCompact for tokens that leave this
	// toolchain.
	ModeUnencoded PayloadMode = "unencoded"
)

// ParsePayloadMode validates a mode name. Empty selects ModeCompact.
func ParsePayloadMode(s string) (PayloadMode, error) {
	switch PayloadMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCompact:
		return ModeCompact, nil
	case ModeUnencoded:
		return ModeUnencoded, nil
	default:
		return "", fmt.Errorf("unknown signature mode %q (want %s or %s)", s, ModeCompact, ModeUnencoded)
	}
}

// JWSOptions configures SignJWS.
type JWSOptions struct {
	// Type is the typ header (e.g. "vc+ld+jwt"); omitted when empty.
	Type string

	// KeyID is the kid header; omitted when empty.
	KeyID string

	// Mode selects the payload representation.
	Mode PayloadMode
}

// SignJWS signs payload with RS256 and returns the compact serialization.
func SignJWS(payload []byte, key *rsa.PrivateKey, opts JWSOptions) (string, error) {
	if key == nil {
		return "", badge.NewError(badge.ErrCodeSigningKey, "no signing key")
	}

	// 1. Create Signer
	so := &jose.SignerOptions{}
	if opts.Type != "" {
		so.WithType(jose.ContentType(opts.Type))
	}
	unencoded := opts.Mode == ModeUnencoded
	if unencoded {
		so.WithBase64(false)
	}
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.RS256,
		Key:       jose.JSONWebKey{Key: key, KeyID: opts.KeyID, Algorithm: string(jose.RS256)},
	}, so)
	if err != nil {
		return "", badge.WrapError(badge.ErrCodeSigningKey, "failed to create signer", err)
	}

	// 2. Sign
	jwsObj, err := signer.Sign(payload)
	if err != nil {
		return "", badge.WrapError(badge.ErrCodeSigning, "failed to sign payload", err)
	}

	// 3. Serialize
	if !unencoded {
		token, err := jwsObj.CompactSerialize()
		if err != nil {
			return "", badge.WrapError(badge.ErrCodeSigning, "failed to serialize JWS", err)
		}
		return token, nil
	}

	detached, err := jwsObj.DetachedCompactSerialize()
	if err != nil {
		return "", badge.WrapError(badge.ErrCodeSigning, "failed to serialize JWS", err)
	}
	header, signature, ok := strings.Cut(detached, "..")
	if !ok {
		return "", badge.NewError(badge.ErrCodeSigning, "unexpected detached serialization")
	}
	return header + "." + string(payload) + "." + signature, nil
}
