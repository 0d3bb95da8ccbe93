package indexer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultMaxDocumentBytes caps a fetched document.
const DefaultMaxDocumentBytes = 64 << 20

// Fetcher loads the raw bytes of a document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (content []byte, contentType string, err error)
}

// HTTPFetcher downloads http(s) URLs and reads file URLs and local paths from disk.
type HTTPFetcher struct {
	MaxBytes int64
	client   *http.Client
}

// NewHTTPFetcher creates a fetcher whose downloads time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		MaxBytes: DefaultMaxDocumentBytes,
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch returns the document content and the content type reported by the server.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid document URL %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "http", "https":
	case "file":
		return f.readFile(u.Path)
	case "":
		return f.readFile(rawURL)
	default:
		return nil, "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download %s: bad status %d", rawURL, resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	if int64(len(content)) > f.MaxBytes {
		return nil, "", fmt.Errorf("document %s exceeds %d bytes", rawURL, f.MaxBytes)
	}

	return content, resp.Header.Get("Content-Type"), nil
}

func (f *HTTPFetcher) readFile(p string) ([]byte, string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if info.Size() > f.MaxBytes {
		return nil, "", fmt.Errorf("document %s exceeds %d bytes", p, f.MaxBytes)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return content, "", nil
}
