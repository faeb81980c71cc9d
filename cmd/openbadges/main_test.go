package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/config"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const cliCatalog = `
repository_url: https://example.github.io/badges
issuers:
  acme:
    name: ACME Academy
    publicKey: "{repository_url}/public/acme-key.json"
    private_key_secret_name: ACME_PRIVATE_KEY
badges:
  foo:
    issuer_id: acme
    name: Foo Course
    description: Completed the Foo course
    criteria: Finish all Foo modules
    image: images/badge.png
    inputs:
      course_name: true
  bar:
    issuer_id: acme
    name: Bar
    description: Bar badge
    criteria: Do bar
    image: images/badge.png
    expires: true
global_inputs:
  course_name:
    description: Name of the course
`

// MockDocumentFetcher is a mock implementation of fetch.DocumentFetcher
type MockDocumentFetcher struct {
	mock.Mock
}

func (m *MockDocumentFetcher) Fetch(ctx context.Context, url string) (json.RawMessage, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type workspace struct {
	dir     string
	catalog string
	keyPEM  []byte
}

// setupWorkspace writes a catalog, a source image and the issuer secrets,
// and loads settings from the resulting environment.
func setupWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "badge.png"), buf.Bytes(), 0o644))

	catalogPath := filepath.Join(dir, "badges.yml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(cliCatalog), 0o644))

	key, err := crypto.GenerateKey(crypto.MinRSAKeyBits)
	require.NoError(t, err)
	keyPEM, err := crypto.EncodePrivateKeyPEM(key)
	require.NoError(t, err)

	t.Setenv("ACME_PRIVATE_KEY", string(keyPEM))
	t.Setenv("RECIPIENT_SALT", "pepper")
	t.Setenv("OPENBADGES_CATALOG", catalogPath)
	t.Setenv("OPENBADGES_WORKFLOW", filepath.Join(dir, "generate-badge.yml"))
	t.Setenv("OPENBADGES_PUBLIC_DIR", filepath.Join(dir, "public"))

	s, err := config.Load()
	require.NoError(t, err)
	settings = s

	return &workspace{dir: dir, catalog: catalogPath, keyPEM: keyPEM}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, badge.Errorf(badge.ErrCodeMissingRequiredInput, "required input %q was not provided", "course_name"))
	assert.Equal(t, "❌ MISSING_REQUIRED_INPUT: required input \"course_name\" was not provided\n", buf.String())

	buf.Reset()
	reportError(&buf, errors.New("boom"))
	assert.Equal(t, "❌ Error: boom\n", buf.String())
}

func TestLoadCatalog_UsesSettingsDefault(t *testing.T) {
	ws := setupWorkspace(t)
	cat, err := loadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(ws.catalog), cat.Dir())

	_, err = loadCatalog(filepath.Join(ws.dir, "missing.yml"))
	assert.ErrorIs(t, err, badge.ErrIO)
}
