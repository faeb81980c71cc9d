package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/patrickmn/go-cache"
)

// maxDocumentSize caps issuer profile and key documents.
const maxDocumentSize = 1 << 20

// documentTTL bounds how long a fetched document is reused within one process.
const documentTTL = 10 * time.Minute

// DocumentFetcher retrieves published JSON documents such as issuer profiles
// and CryptographicKey objects.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (json.RawMessage, error)
}

// CachingDocumentFetcher fetches JSON documents over HTTP. Badges verified
// in the same run usually share an issuer key, so documents are cached by URL.
type CachingDocumentFetcher struct {
	client *http.Client
	cache  *cache.Cache
}

// NewDocumentFetcher creates a fetcher with the given request timeout.
func NewDocumentFetcher(timeout time.Duration) *CachingDocumentFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CachingDocumentFetcher{
		client: &http.Client{Timeout: timeout},
		cache:  cache.New(documentTTL, 2*documentTTL),
	}
}

// Fetch retrieves the document at url, using the cache if available.
func (f *CachingDocumentFetcher) Fetch(ctx context.Context, url string) (json.RawMessage, error) {
	if x, found := f.cache.Get(url); found {
		return x.(json.RawMessage), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeNetwork, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/ld+json, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeNetwork, fmt.Sprintf("failed to fetch %s", url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, badge.Errorf(badge.ErrCodeNetwork, "failed to fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeNetwork, fmt.Sprintf("failed to read %s", url), err)
	}
	if len(body) > maxDocumentSize {
		return nil, badge.Errorf(badge.ErrCodeNetwork, "document at %s exceeds %d bytes", url, maxDocumentSize)
	}
	if !json.Valid(body) {
		return nil, badge.Errorf(badge.ErrCodeNetwork, "document at %s is not valid JSON", url)
	}

	doc := json.RawMessage(body)
	f.cache.Set(url, doc, cache.DefaultExpiration)
	return doc, nil
}
