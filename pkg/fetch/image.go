// Package fetch retrieves the resources a badge refers to: the source image
// and, for verification, the issuer's published key documents.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Config controls source image retrieval.
type Config struct {
	// Timeout bounds a single HTTP fetch, including reading the body.
	Timeout time.Duration

	// MaxImageSize is the largest image accepted, in bytes.
	MaxImageSize int64
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxImageSize: 5 << 20,
	}
}

// Image is a retrieved PNG. Remote images are held in a temporary file that
// Close removes; local images are read in place.
type Image struct {
	// Location is what was requested (URL or path).
	Location string

	// Path is the file holding the image bytes.
	Path string

	temp bool
}

// Bytes reads the whole image.
func (img *Image) Bytes() ([]byte, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to read image %s", img.Location), err)
	}
	return data, nil
}

// Close releases the temporary file of a downloaded image.
func (img *Image) Close() error {
	if img == nil || !img.temp {
		return nil
	}
	if err := os.Remove(img.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ImageFetcher resolves an image location to a local PNG.
type ImageFetcher interface {
	Fetch(ctx context.Context, location string) (*Image, error)
}

// HTTPImageFetcher downloads http(s) locations and opens anything else as a
// local path.
type HTTPImageFetcher struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// Option configures an HTTPImageFetcher.
type Option func(*HTTPImageFetcher)

// WithHTTPClient replaces the HTTP client. Its Timeout is left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPImageFetcher) {
		f.client = client
	}
}

// NewImageFetcher creates a fetcher. A zero Config field takes its default.
func NewImageFetcher(config Config, logger *zap.Logger, opts ...Option) *HTTPImageFetcher {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxImageSize <= 0 {
		config.MaxImageSize = defaults.MaxImageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &HTTPImageFetcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsRemote reports whether location is fetched over HTTP.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch retrieves the PNG at location. The caller must Close the result.
func (f *HTTPImageFetcher) Fetch(ctx context.Context, location string) (*Image, error) {
	if !IsRemote(location) {
		return f.openLocal(location)
	}
	return f.download(ctx, location)
}

func (f *HTTPImageFetcher) openLocal(path string) (*Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to open image %s", path), err)
	}
	if info.IsDir() {
		return nil, badge.Errorf(badge.ErrCodeIO, "image %s is a directory", path)
	}
	if info.Size() > f.config.MaxImageSize {
		return nil, badge.Errorf(badge.ErrCodeImageFormat, "image %s is %d bytes, limit is %d", path, info.Size(), f.config.MaxImageSize)
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to read image %s", path), err)
	}
	if err := requirePNG(path, mime); err != nil {
		return nil, err
	}
	return &Image{Location: path, Path: path}, nil
}

func (f *HTTPImageFetcher) download(ctx context.Context, url string) (_ *Image, err error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeNetwork, "failed to create request", err)
	}
	req.Header.Set("Accept", "image/png")

	f.logger.Debug("fetching badge image", zap.String("url", url))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeNetwork, fmt.Sprintf("failed to fetch image %s", url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, badge.Errorf(badge.ErrCodeNetwork, "failed to fetch image %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "openbadges-image-*.png")
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, "failed to create temporary image file", err)
	}
	img := &Image{Location: url, Path: tmp.Name(), temp: true}
	defer func() {
		if err != nil {
			_ = img.Close()
		}
	}()

	// Read one byte past the limit to detect oversized bodies.
	n, copyErr := io.Copy(tmp, io.LimitReader(resp.Body, f.config.MaxImageSize+1))
	closeErr := tmp.Close()
	if copyErr != nil {
		return nil, badge.WrapError(badge.ErrCodeNetwork, fmt.Sprintf("failed to download image %s", url), copyErr)
	}
	if closeErr != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, "failed to write temporary image file", closeErr)
	}
	if n > f.config.MaxImageSize {
		return nil, badge.Errorf(badge.ErrCodeImageFormat, "image %s exceeds %d bytes", url, f.config.MaxImageSize)
	}

	mime, err := mimetype.DetectFile(img.Path)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, "failed to read temporary image file", err)
	}
	if err := requirePNG(url, mime); err != nil {
		return nil, err
	}

	f.logger.Debug("fetched badge image", zap.String("url", url), zap.Int64("bytes", n))
	return img, nil
}

func requirePNG(location string, mime *mimetype.MIME) error {
	if !mime.Is("image/png") {
		return badge.Errorf(badge.ErrCodeImageFormat, "image %s is %s, expected image/png", location, mime.String())
	}
	return nil
}
