package imageprocessor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// LoadError tags a fetch or decode failure with the offending URL.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// HTTPLoader downloads and decodes images.
type HTTPLoader struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPLoader returns a loader refusing bodies larger than maxBytes (0 disables the limit).
func NewHTTPLoader(client *http.Client, maxBytes int64) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{client: client, maxBytes: maxBytes}
}

// Load fetches url and decodes it into a Raster.
func (l *HTTPLoader) Load(ctx context.Context, url string) (*Raster, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var body io.Reader = resp.Body
	if l.maxBytes > 0 {
		body = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, &LoadError{URL: url, Err: fmt.Errorf("image exceeds %d bytes", l.maxBytes)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{URL: url, Err: fmt.Errorf("decode: %w", err)}
	}
	return NewRaster(img), nil
}
