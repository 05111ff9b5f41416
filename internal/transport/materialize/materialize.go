// Package materialize resolves document field URIs to their bytes.
package materialize

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
)

// DefaultMaxSize caps a single payload.
const DefaultMaxSize = 32 << 20

var (
	// ErrUnsupportedScheme signals a URI no fetcher is registered for.
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
	// ErrTooLarge signals a payload above the size cap.
	ErrTooLarge = errors.New("payload too large")
)

// Fetcher loads the payload behind one URI scheme.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, uri string) ([]byte, string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, uri string) ([]byte, string, error) { return f(ctx, uri) }

// Resolver dispatches a URI to the fetcher registered for its scheme.
type Resolver struct {
	fetchers map[string]Fetcher
	maxSize  int64
	logger   *zap.Logger
}

// New creates a resolver serving data: URIs and local files. Remote schemes are added
// with WithHTTP and WithS3.
func New(logger *zap.Logger) *Resolver {
	r := &Resolver{fetchers: make(map[string]Fetcher), maxSize: DefaultMaxSize, logger: logger}
	r.fetchers["data"] = FetcherFunc(fetchData)
	r.fetchers["file"] = FetcherFunc(r.fetchFile)
	return r
}

// WithMaxSize overrides the payload cap.
func (r *Resolver) WithMaxSize(n int64) *Resolver {
	if n > 0 {
		r.maxSize = n
	}
	return r
}

// WithHTTP serves http:// and https:// through client. A nil client uses a 30s timeout.
func (r *Resolver) WithHTTP(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	h := &httpFetcher{client: client, maxSize: r.maxSize}
	r.fetchers["http"] = h
	r.fetchers["https"] = h
	return r
}

// WithS3 serves s3:// URIs.
func (r *Resolver) WithS3(s *S3) *Resolver {
	r.fetchers["s3"] = s
	return r
}

// With registers f for scheme.
func (r *Resolver) With(scheme string, f Fetcher) *Resolver {
	r.fetchers[strings.ToLower(scheme)] = f
	return r
}

// Fetch implements the indexer's materializer.
func (r *Resolver) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	scheme := document.Scheme(uri)
	f, ok := r.fetchers[scheme]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	data, contentType, err := f.Fetch(ctx, uri)
	if err != nil {
		r.logger.Debug("materialize failed", zap.String("scheme", scheme), zap.Error(err))
		return nil, "", err
	}
	if int64(len(data)) > r.maxSize {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	return data, contentType, nil
}

// fetchData decodes an RFC 2397 data URI.
func fetchData(_ context.Context, uri string) ([]byte, string, error) {
	rest := uri[len("data:"):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data uri")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}
	contentType := meta
	if contentType == "" {
		contentType = "text/plain;charset=US-ASCII"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode data uri: %w", err)
		}
		return data, contentType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("unescape data uri: %w", err)
	}
	return []byte(text), contentType, nil
}

// fetchFile reads file:// URIs and bare paths. The content type is left to the caller.
func (r *Resolver) fetchFile(_ context.Context, uri string) ([]byte, string, error) {
	path := uri
	if strings.HasPrefix(strings.ToLower(uri), "file://") {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse file uri: %w", err)
		}
		path = u.Path
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > r.maxSize {
		return nil, "", fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, "", nil
}

type httpFetcher struct {
	client  *http.Client
	maxSize int64
}

func (h *httpFetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", uri, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("get %s: status %d", uri, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > h.maxSize {
		return nil, "", fmt.Errorf("%w: %s", ErrTooLarge, uri)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
