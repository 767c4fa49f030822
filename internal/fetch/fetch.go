package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Getter performs one plain HTTP GET with a fixed timeout. Asset downloads
// go through this rather than the rendering browser.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Client struct {
	http      *http.Client
	userAgent string
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// NewClientWithTransport is for tests that stub the transport.
func NewClientWithTransport(rt http.RoundTripper, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Transport: rt, Timeout: timeout},
	}
}

// Get fetches url and returns the body. A non-2xx response is a StatusError,
// not a success with odd bytes.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}

	return body, nil
}
