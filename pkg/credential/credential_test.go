package credential

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/catalog"
	"github.com/capiscio/openbadges/pkg/crypto"
	"github.com/capiscio/openbadges/pkg/identity"
	"github.com/capiscio/openbadges/pkg/inputs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repo = "https://example.github.io/badges"

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := crypto.GenerateKey(crypto.MinRSAKeyBits)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
}

func testInput(resolved inputs.Resolved) Input {
	return Input{
		RepositoryURL: repo,
		IssuerID:      "acme",
		Issuer: catalog.Profile{
			"id":        repo + "/public/acme-issuer.json",
			"name":      "Acme Academy",
			"url":       repo,
			"publicKey": repo + "/public/acme-key.json",
		},
		BadgeID:  "bar",
		BadgeURL: repo + "/badges/bar",
		Badge: &catalog.Badge{
			IssuerID:    "acme",
			Name:        "Bar Badge",
			Description: "Awarded for bar",
			Criteria:    "Complete the bar course",
			Image:       repo + "/images/bar.png",
		},
		Resolved:  resolved,
		Recipient: identity.NewRecipient("ada@example.com", "pepper"),
		IssuedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindOB3, k)

	k, err = ParseKind("OB2")
	require.NoError(t, err)
	assert.Equal(t, KindOB2, k)

	_, err = ParseKind("ob4")
	assert.Equal(t, badge.ErrCodeConfiguration, badge.GetErrorCode(err))

	_, err = NewFormat(Kind("ob4"), Options{})
	assert.Error(t, err)
}

func TestOB3_Assemble(t *testing.T) {
	format, err := NewFormat(KindOB3, Options{EmbedIssuer: true, NewID: sequentialIDs()})
	require.NoError(t, err)
	assert.Equal(t, "openbadgecredential", format.Keyword())

	c, err := format.Assemble(testInput(inputs.Resolved{
		"course_name": "Go 101",
		"expires":     "2025-01-01T00:00:00Z",
	}))
	require.NoError(t, err)

	doc := c.Document
	assert.Equal(t, "urn:uuid:00000000-0000-4000-8000-000000000001", doc["id"])
	assert.Equal(t, []any{VCContext, OB3Context}, doc["@context"])
	assert.Equal(t, []any{"VerifiableCredential", "OpenBadgeCredential"}, doc["type"])
	assert.Equal(t, "2024-06-01T12:00:00Z", doc["validFrom"])
	assert.Equal(t, "2025-01-01T00:00:00Z", doc["validUntil"])
	assert.NotContains(t, doc, "course_name")
	assert.NotContains(t, doc, "expires")

	issuer := doc["issuer"].(map[string]any)
	assert.Equal(t, repo+"/public/acme-issuer.json", issuer["id"])
	assert.Equal(t, []any{"Profile"}, issuer["type"])

	subject := doc["credentialSubject"].(map[string]any)
	assert.Equal(t, identity.Hash("ada@example.com", "pepper", identity.SchemeURN), subject["id"])
	assert.Equal(t, map[string]any{"course_name": "Go 101"}, subject["customFields"])

	achievement := subject["achievement"].(map[string]any)
	assert.Equal(t, repo+"/badges/bar", achievement["id"])
	assert.Equal(t, map[string]any{"narrative": "Complete the bar course"}, achievement["criteria"])

	identifier := subject["identifier"].([]any)[0].(map[string]any)
	assert.Equal(t, identity.Hash("ada@example.com", "pepper", identity.SchemeOB2), identifier["identityHash"])
	assert.Equal(t, "pepper", identifier["salt"])

	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, int64(1735689600), c.ExpiresAt.Unix())
}

func TestOB3_IssuerByReference(t *testing.T) {
	format, err := NewFormat(KindOB3, Options{EmbedIssuer: false})
	require.NoError(t, err)

	c, err := format.Assemble(testInput(nil))
	require.NoError(t, err)
	assert.Equal(t, repo+"/public/acme-issuer.json", c.Document["issuer"])
	assert.NotContains(t, c.Document, "validUntil")
	assert.NotContains(t, c.Document["credentialSubject"], "customFields")
	assert.Nil(t, c.ExpiresAt)
}

func TestOB3_SignAndVerify(t *testing.T) {
	key := signingKey(t)
	for _, mode := range []crypto.PayloadMode{crypto.ModeCompact, crypto.ModeUnencoded} {
		t.Run(string(mode), func(t *testing.T) {
			format, err := NewFormat(KindOB3, Options{EmbedIssuer: true, SignatureMode: mode})
			require.NoError(t, err)
			c, err := format.Assemble(testInput(inputs.Resolved{"expires": "2025-01-01T00:00:00Z"}))
			require.NoError(t, err)

			signed, err := format.Sign(c, key)
			require.NoError(t, err)
			assert.Equal(t, "openbadgecredential", signed.Keyword)

			verified, err := crypto.VerifyJWS(signed.Token, &key.PublicKey)
			require.NoError(t, err)
			assert.Equal(t, "RS256", verified.Header["alg"])
			assert.Equal(t, "vc+ld+jwt", verified.Header["typ"])
			assert.Equal(t, repo+"/public/acme-key.json", verified.Header["kid"])

			claims, err := verified.Claims()
			require.NoError(t, err)
			assert.Equal(t, c.Issuer, claims["iss"])
			assert.Equal(t, c.Subject, claims["sub"])
			assert.Equal(t, c.ID, claims["jti"])
			assert.EqualValues(t, 1735689600, claims["exp"])
			assert.EqualValues(t, c.IssuedAt.Unix(), claims["nbf"])
			assert.Equal(t, "2025-01-01T00:00:00Z", claims["validUntil"])
		})
	}
}

func TestOB3_TamperedTokenFails(t *testing.T) {
	key := signingKey(t)
	format, err := NewFormat(KindOB3, Options{EmbedIssuer: true})
	require.NoError(t, err)
	c, err := format.Assemble(testInput(inputs.Resolved{"course_name": "Go 101"}))
	require.NoError(t, err)
	signed, err := format.Sign(c, key)
	require.NoError(t, err)

	parts := strings.Split(signed.Token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	_, err = crypto.VerifyJWS(strings.Join(parts, "."), &key.PublicKey)
	assert.Error(t, err)
}

func TestOB2_Assemble(t *testing.T) {
	format, err := NewFormat(KindOB2, Options{NewID: sequentialIDs()})
	require.NoError(t, err)
	assert.Equal(t, "openbadges", format.Keyword())

	c, err := format.Assemble(testInput(inputs.Resolved{
		"grade":   "pass",
		"expires": "2025-01-01T00:00:00Z",
		"id":      "https://attacker.example/forged",
	}))
	require.NoError(t, err)

	doc := c.Document
	assert.Equal(t, catalog.OB2Context, doc["@context"])
	assert.Equal(t, "Assertion", doc["type"])
	assert.Equal(t, repo+"/assertions/00000000-0000-4000-8000-000000000001.json", doc["id"])
	assert.Equal(t, "pass", doc["grade"])
	assert.Equal(t, "2025-01-01T00:00:00Z", doc["expires"])
	assert.Equal(t, "2024-06-01T12:00:00Z", doc["issuedOn"])

	recipient := doc["recipient"].(map[string]any)
	assert.Equal(t, "email", recipient["type"])
	assert.Equal(t, true, recipient["hashed"])
	assert.Equal(t, identity.Hash("ada@example.com", "pepper", identity.SchemeOB2), recipient["identity"])

	verification := doc["verification"].(map[string]any)
	assert.Equal(t, "SignedBadge", verification["type"])
	assert.Equal(t, repo+"/public/acme-key.json", verification["creator"])

	badgeClass := doc["badge"].(map[string]any)
	assert.Equal(t, "BadgeClass", badgeClass["type"])
	assert.Equal(t, repo+"/images/bar.png", badgeClass["image"])
	assert.Equal(t, "Acme Academy", badgeClass["issuer"].(map[string]any)["name"])
}

func TestOB2_SignAndVerify(t *testing.T) {
	key := signingKey(t)
	format, err := NewFormat(KindOB2, Options{})
	require.NoError(t, err)
	c, err := format.Assemble(testInput(nil))
	require.NoError(t, err)

	signed, err := format.Sign(c, key)
	require.NoError(t, err)

	verified, err := crypto.VerifyJWS(signed.Token, &key.PublicKey)
	require.NoError(t, err)
	assert.NotContains(t, verified.Header, "typ")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(verified.Payload, &doc))
	assert.Equal(t, c.ID, doc["id"])
}

func TestNoEmailInArtifacts(t *testing.T) {
	key := signingKey(t)
	for _, kind := range []Kind{KindOB2, KindOB3} {
		format, err := NewFormat(kind, Options{EmbedIssuer: true})
		require.NoError(t, err)
		c, err := format.Assemble(testInput(inputs.Resolved{"recipient_email": "ada@example.com"}))
		require.NoError(t, err)
		signed, err := format.Sign(c, key)
		require.NoError(t, err)

		verified, err := crypto.VerifyJWS(signed.Token, &key.PublicKey)
		require.NoError(t, err)
		assert.NotContains(t, string(verified.Payload), "ada@example.com", kind)
	}
}

func TestDistinctIDs(t *testing.T) {
	format, err := NewFormat(KindOB3, Options{})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		c, err := format.Assemble(testInput(nil))
		require.NoError(t, err)
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestAssemble_InvalidInput(t *testing.T) {
	format, err := NewFormat(KindOB3, Options{})
	require.NoError(t, err)

	in := testInput(inputs.Resolved{"expires": "2025-01-01"})
	_, err = format.Assemble(in)
	assert.Equal(t, badge.ErrCodeInvalidDateFormat, badge.GetErrorCode(err))

	in = testInput(nil)
	in.Badge = nil
	_, err = format.Assemble(in)
	assert.Error(t, err)
}
