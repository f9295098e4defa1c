package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"
)

var (
	ErrUnsupportedRef = errors.New("unsupported image reference")
	ErrFetchFailed    = errors.New("image fetch failed")
	ErrImageTooLarge  = errors.New("image exceeds size limit")
	ErrInvalidImage   = errors.New("image is not a decodable jpeg, png or webp")
)

// ImageFetcher resolves a catalog image reference to bytes
type ImageFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FetcherConfig holds fetcher limits
type FetcherConfig struct {
	RequestsPerSecond float64
	Burst             int
	MaxBytes          int64
	Timeout           time.Duration
}

// DefaultFetcherConfig returns a FetcherConfig with sensible defaults
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		MaxBytes:          10 << 20,
		Timeout:           10 * time.Second,
	}
}

// Fetcher loads http(s) and file references. Remote calls share one limiter.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     FetcherConfig
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		cfg:     cfg,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedRef, ref, err)
	}

	var data []byte
	switch u.Scheme {
	case "http", "https":
		data, err = f.fetchHTTP(ctx, ref)
	case "file":
		data, err = f.fetchFile(u.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
	}
	if err != nil {
		return nil, err
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, ref)
	}

	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetchFailed, ref, resp.StatusCode)
	}

	return f.readCapped(resp.Body)
}

func (f *Fetcher) fetchFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() {
		_ = fh.Close()
	}()

	return f.readCapped(fh)
}

func (f *Fetcher) readCapped(r io.Reader) ([]byte, error) {
	if f.cfg.MaxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

var _ ImageFetcher = (*Fetcher)(nil)
