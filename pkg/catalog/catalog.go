// Package catalog loads the declarative badge catalog (badges.yml).
//
// The catalog names the repository the public files are served from, the
// issuers that sign credentials, the badges they issue and the input schema
// of every badge. Catalog data is read-only once loaded.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/capiscio/openbadges/pkg/badge"
	"gopkg.in/yaml.v3"
)

// RepositoryPlaceholder is substituted with Catalog.RepositoryURL in issuer and badge strings.
const RepositoryPlaceholder = "{repository_url}"

// PublicDir is the repository directory that serves issuer profile files.
const PublicDir = "public"

// Catalog is the root of badges.yml.
type Catalog struct {
	// RepositoryURL is the base URL every public id is derived from.
	RepositoryURL string `yaml:"repository_url" validate:"required,url"`

	// Issuers maps issuer id to issuer record.
	Issuers map[string]*Issuer `yaml:"issuers" validate:"required,min=1,dive,required"`

	// Badges maps badge id to badge definition.
	Badges map[string]*Badge `yaml:"badges" validate:"required,min=1,dive,required"`

	// GlobalInputs holds input definitions shared by all badges.
	GlobalInputs map[string]*GlobalInput `yaml:"global_inputs" validate:"omitempty,dive,required"`

	// dir is the directory the catalog was loaded from; relative image paths resolve against it.
	dir string
}

// Issuer is a signing authority.
// Fields other than the known ones are kept in Extra and published verbatim.
type Issuer struct {
	Name                 string         `yaml:"name" validate:"required"`
	PublicKey            string         `yaml:"publicKey" validate:"required"`
	PrivateKeySecretName string         `yaml:"private_key_secret_name" validate:"required"`
	Extra                map[string]any `yaml:",inline"`
}

// Badge is a badge definition.
type Badge struct {
	IssuerID    string                `yaml:"issuer_id" validate:"required"`
	Name        string                `yaml:"name" validate:"required"`
	Description string                `yaml:"description" validate:"required"`
	Criteria    string                `yaml:"criteria" validate:"required"`
	Image       string                `yaml:"image" validate:"required"`
	Expires     bool                  `yaml:"expires"`
	Format      string                `yaml:"format" validate:"omitempty,oneof=ob2 ob3"`
	Inputs      map[string]*InputSpec `yaml:"inputs" validate:"omitempty,dive,required"`
}

// GlobalInput is an input definition shared across badges.
type GlobalInput struct {
	Description string  `yaml:"description"`
	Default     *string `yaml:"default"`
	Date        bool    `yaml:"date"`
	DefaultNow  bool    `yaml:"default_now"`
}

// InputSpec declares one badge input.
//
// In YAML it is either a mapping or a bare boolean; "course_name: true" is
// shorthand for {required: true}.
type InputSpec struct {
	Description string  `yaml:"description"`
	Required    *bool   `yaml:"required"`
	Input       *bool   `yaml:"input"`
	Default     *string `yaml:"default"`
	DefaultNow  bool    `yaml:"default_now"`
	Date        bool    `yaml:"date"`
}

// UnmarshalYAML accepts the boolean shorthand as well as the full mapping.
func (s *InputSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Tag == "!!null" {
			return nil
		}
		var required bool
		if err := value.Decode(&required); err != nil {
			return fmt.Errorf("line %d: input must be a boolean or a mapping", value.Line)
		}
		s.Required = &required
		return nil
	}
	type plain InputSpec
	return value.Decode((*plain)(s))
}

// Load reads, parses and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to read catalog %s", path), err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		abs = filepath.Dir(path)
	}
	c.dir = abs
	return c, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, badge.WrapError(badge.ErrCodeCatalogInvalid, "failed to parse catalog", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() {
	c.RepositoryURL = strings.TrimSuffix(strings.TrimSpace(c.RepositoryURL), "/")
	for _, iss := range c.Issuers {
		if iss == nil {
			continue
		}
		// public_key is accepted as an alias of publicKey.
		if v, ok := iss.Extra["public_key"].(string); ok {
			if iss.PublicKey == "" {
				iss.PublicKey = v
			}
			delete(iss.Extra, "public_key")
		}
	}
}

// Validate checks struct constraints and cross references.
func (c *Catalog) Validate() error {
	if err := validateStruct(c); err != nil {
		return badge.WrapError(badge.ErrCodeCatalogInvalid, "catalog failed validation", err)
	}
	for _, id := range c.BadgeIDs() {
		b := c.Badges[id]
		if _, ok := c.Issuers[b.IssuerID]; !ok {
			return badge.Errorf(badge.ErrCodeCatalogInvalid, "badge %q references unknown issuer %q", id, b.IssuerID)
		}
	}
	return nil
}

// Dir returns the directory the catalog was loaded from, or "" for parsed documents.
func (c *Catalog) Dir() string {
	return c.dir
}

// BadgeIDs returns the badge ids in sorted order.
func (c *Catalog) BadgeIDs() []string {
	ids := make([]string, 0, len(c.Badges))
	for id := range c.Badges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IssuerIDs returns the issuer ids in sorted order.
func (c *Catalog) IssuerIDs() []string {
	ids := make([]string, 0, len(c.Issuers))
	for id := range c.Issuers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Badge returns the badge definition with placeholders substituted.
func (c *Catalog) Badge(id string) (*Badge, error) {
	b, ok := c.Badges[id]
	if !ok || b == nil {
		return nil, badge.Errorf(badge.ErrCodeConfigLookup, "unknown badge id %q", id)
	}
	resolved := *b
	resolved.Name = c.Substitute(b.Name)
	resolved.Description = c.Substitute(b.Description)
	resolved.Criteria = c.Substitute(b.Criteria)
	resolved.Image = c.Substitute(b.Image)
	return &resolved, nil
}

// Issuer returns the issuer record for id.
func (c *Catalog) Issuer(id string) (*Issuer, error) {
	iss, ok := c.Issuers[id]
	if !ok || iss == nil {
		return nil, badge.Errorf(badge.ErrCodeConfigLookup, "unknown issuer id %q", id)
	}
	return iss, nil
}

// Substitute replaces the repository placeholder in s.
func (c *Catalog) Substitute(s string) string {
	return strings.ReplaceAll(s, RepositoryPlaceholder, c.RepositoryURL)
}

// BadgeURL is the public id of a badge class / achievement.
func (c *Catalog) BadgeURL(badgeID string) string {
	return fmt.Sprintf("%s/badges/%s", c.RepositoryURL, badgeID)
}

// IssuerFileName is the file name of an issuer's public profile.
func IssuerFileName(issuerID string) string {
	return issuerID + "-issuer.json"
}

// IssuerURL is the public id of an issuer profile.
func (c *Catalog) IssuerURL(issuerID string) string {
	return fmt.Sprintf("%s/%s/%s", c.RepositoryURL, PublicDir, IssuerFileName(issuerID))
}

// InputsInUse returns every input name declared by any badge, sorted.
func (c *Catalog) InputsInUse() []string {
	seen := make(map[string]bool)
	for _, b := range c.Badges {
		if b == nil {
			continue
		}
		for name := range b.Inputs {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImageLocation returns the source image of a badge as either an http(s) URL
// or a filesystem path resolved against the catalog directory.
func (c *Catalog) ImageLocation(b *Badge) string {
	ref := c.Substitute(b.Image)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if filepath.IsAbs(ref) || c.dir == "" {
		return ref
	}
	return filepath.Join(c.dir, ref)
}
