package issuance

import (
	"os"
	"strings"

	"github.com/capiscio/openbadges/pkg/badge"
)

// SecretSource looks up secret values by name.
type SecretSource interface {
	Lookup(name string) (string, bool)
}

// EnvSecrets reads secrets from the process environment.
type EnvSecrets struct{}

// Lookup returns the environment variable name. Blank values count as absent.
func (EnvSecrets) Lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// MapSecrets is an in-memory SecretSource.
type MapSecrets map[string]string

// Lookup returns the value stored under name.
func (m MapSecrets) Lookup(name string) (string, bool) {
	v, ok := m[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func requireSecret(src SecretSource, name, what string) (string, error) {
	if name == "" {
		return "", badge.Errorf(badge.ErrCodeMissingSecret, "%s secret name is not configured", what)
	}
	v, ok := src.Lookup(name)
	if !ok {
		return "", badge.Errorf(badge.ErrCodeMissingSecret, "%s secret %s is not set", what, name)
	}
	return v, nil
}
