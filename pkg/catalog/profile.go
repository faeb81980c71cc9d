package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/capiscio/openbadges/pkg/badge"
)

// OB2Context is the JSON-LD context of Open Badges 2.0 documents.
const OB2Context = "https://w3id.org/openbadges/v2"

// Profile is the public view of an issuer: every catalog field with
// placeholders substituted, an id derived from the repository URL, and
// without private_key_secret_name.
type Profile map[string]any

// ID returns the profile id.
func (p Profile) ID() string {
	id, _ := p["id"].(string)
	return id
}

// Name returns the issuer name.
func (p Profile) Name() string {
	name, _ := p["name"].(string)
	return name
}

// PublicKey returns the public key reference.
func (p Profile) PublicKey() string {
	key, _ := p["publicKey"].(string)
	return key
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	return Profile(cloneMap(p))
}

// Profile builds the public profile of the issuer with the given id.
func (c *Catalog) Profile(issuerID string) (Profile, error) {
	iss, err := c.Issuer(issuerID)
	if err != nil {
		return nil, err
	}
	p := make(Profile, len(iss.Extra)+3)
	for k, v := range iss.Extra {
		p[k] = c.substituteValue(v)
	}
	// Extra never carries the secret name (it has its own field), but
	// a nested alias must not leak either.
	delete(p, "private_key_secret_name")
	p["name"] = c.Substitute(iss.Name)
	p["publicKey"] = c.Substitute(iss.PublicKey)
	p["id"] = c.IssuerURL(issuerID)
	return p, nil
}

// PublicDocument is the OB2 Issuer document published for issuerID.
func (c *Catalog) PublicDocument(issuerID string) (Profile, error) {
	p, err := c.Profile(issuerID)
	if err != nil {
		return nil, err
	}
	p["@context"] = OB2Context
	p["type"] = "Issuer"
	return p, nil
}

// WriteIssuerFiles writes one <issuer_id>-issuer.json per issuer into dir and
// returns the written paths in issuer id order.
func (c *Catalog) WriteIssuerFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to create %s", dir), err)
	}
	var written []string
	for _, id := range c.IssuerIDs() {
		doc, err := c.PublicDocument(id)
		if err != nil {
			return written, err
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return written, fmt.Errorf("failed to marshal issuer %s: %w", id, err)
		}
		path := filepath.Join(dir, IssuerFileName(id))
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			return written, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to write %s", path), err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (c *Catalog) substituteValue(v any) any {
	switch val := v.(type) {
	case string:
		return c.Substitute(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = c.substituteValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = c.substituteValue(child)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Profile:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}
