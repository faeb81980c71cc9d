package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/go-jose/go-jose/v4"
)

// MinRSAKeyBits is the smallest RSA modulus accepted for signing.
const MinRSAKeyBits = 2048

// GenerateKey creates a new RSA key pair for an issuer.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSAKeyBits {
		return nil, fmt.Errorf("key size %d is below the minimum of %d bits", bits, MinRSAKeyBits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// ParsePrivateKey parses an RSA private key from PEM (PKCS#1 or PKCS#8) or
// from a JWK document. Failures are SIGNING_KEY errors.
func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	data = normalizeKeyMaterial(data)
	if len(data) == 0 {
		return nil, badge.NewError(badge.ErrCodeSigningKey, "private key is empty")
	}

	var key *rsa.PrivateKey
	if data[0] == '{' {
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(data, &jwk); err != nil {
			return nil, badge.WrapError(badge.ErrCodeSigningKey, "failed to parse private JWK", err)
		}
		priv, ok := jwk.Key.(*rsa.PrivateKey)
		if !ok {
			return nil, badge.NewError(badge.ErrCodeSigningKey, "JWK is not an RSA private key")
		}
		key = priv
	} else {
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, badge.NewError(badge.ErrCodeSigningKey, "private key is not PEM encoded")
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, badge.WrapError(badge.ErrCodeSigningKey, "failed to parse PKCS#1 private key", err)
			}
			key = priv
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, badge.WrapError(badge.ErrCodeSigningKey, "failed to parse PKCS#8 private key", err)
			}
			priv, ok := parsed.(*rsa.PrivateKey)
			if !ok {
				return nil, badge.Errorf(badge.ErrCodeSigningKey, "PKCS#8 key is %T, RS256 requires RSA", parsed)
			}
			key = priv
		default:
			return nil, badge.Errorf(badge.ErrCodeSigningKey, "unsupported PEM block %q", block.Type)
		}
	}

	if key.N.BitLen() < MinRSAKeyBits {
		return nil, badge.Errorf(badge.ErrCodeSigningKey, "RSA key is %d bits, need at least %d", key.N.BitLen(), MinRSAKeyBits)
	}
	if err := key.Validate(); err != nil {
		return nil, badge.WrapError(badge.ErrCodeSigningKey, "RSA key failed validation", err)
	}
	return key, nil
}

// ParsePublicKey parses an RSA public key from PEM (PKIX or PKCS#1), a JWK, or
// an Open Badges CryptographicKey document carrying publicKeyPem.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	data = normalizeKeyMaterial(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("public key is empty")
	}

	if data[0] == '{' {
		var doc struct {
			PublicKeyPem string `json:"publicKeyPem"`
		}
		if err := json.Unmarshal(data, &doc); err == nil && doc.PublicKeyPem != "" {
			return ParsePublicKey([]byte(doc.PublicKeyPem))
		}
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(data, &jwk); err != nil {
			return nil, fmt.Errorf("failed to parse JWK: %w", err)
		}
		switch k := jwk.Key.(type) {
		case *rsa.PublicKey:
			return k, nil
		case *rsa.PrivateKey:
			return &k.PublicKey, nil
		default:
			return nil, fmt.Errorf("JWK is not an RSA key")
		}
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("public key is not PEM encoded")
	}
	switch block.Type {
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKIX public key: %w", err)
		}
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", parsed)
		}
		return pub, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "RSA PRIVATE KEY", "PRIVATE KEY":
		priv, err := ParsePrivateKey(data)
		if err != nil {
			return nil, err
		}
		return &priv.PublicKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// EncodePrivateKeyPEM renders key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// EncodePublicKeyPEM renders pub as a PKIX PEM block.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// normalizeKeyMaterial trims whitespace and expands literal "\n" sequences,
// which is how multi-line keys often arrive through environment variables.
func normalizeKeyMaterial(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("-----")) && !bytes.Contains(data, []byte("\n")) {
		data = bytes.ReplaceAll(data, []byte(`\n`), []byte("\n"))
	}
	return data
}
