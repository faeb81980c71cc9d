// Package identity derives the hashed recipient identifier carried in a
// credential in place of the recipient's email address.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Scheme is the rendering convention of a hashed identity.
// Each credential format owns its scheme; they are not interchangeable.
type Scheme string

const (
	// SchemeOB2 renders "sha256$<hex>" (Open Badges 2.0 recipient.identity).
	SchemeOB2 Scheme = "sha256$"

	// SchemeURN renders "urn:sha256:<hex>".
	SchemeURN Scheme = "urn:sha256:"

	// SchemeEmailURN renders "urn:email:<hex>".
	SchemeEmailURN Scheme = "urn:email:"
)

// Digest returns the lowercase hex SHA-256 of email followed by salt.
func Digest(email, salt string) string {
	sum := sha256.Sum256([]byte(email + salt))
	return hex.EncodeToString(sum[:])
}

// Hash renders the salted digest of email in the given scheme.
func Hash(email, salt string, scheme Scheme) string {
	return string(scheme) + Digest(email, salt)
}

// Recipient is a hashed recipient identity. The salt travels with the hash;
// it defeats precomputed lookups and is not a secret.
type Recipient struct {
	Digest string
	Salt   string
}

// NewRecipient hashes email with salt.
func NewRecipient(email, salt string) Recipient {
	return Recipient{Digest: Digest(email, salt), Salt: salt}
}

// In renders the recipient in scheme.
func (r Recipient) In(scheme Scheme) string {
	return string(scheme) + r.Digest
}
