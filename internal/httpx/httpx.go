// Package httpx wraps the plain GET-and-decode calls every venue adapter
// makes and maps their failures onto the shared error kinds.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/m1amgn/cex-dex-arbitrager/internal/types"
)

// maxBody caps how much of an error body ends up in the message.
const maxBody = 256

// MaxResponse caps a response body read into memory.
const MaxResponse = 8 << 20

func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        256,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// GetBytes performs a GET and returns the body of a 200 response.
// Network failures wrap types.ErrTransport, non-200 statuses types.ErrUpstream.
func GetBytes(ctx context.Context, c *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", types.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponse+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", types.ErrTransport, err)
	}
	if len(b) > MaxResponse {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", types.ErrUpstream, MaxResponse)
	}
	if resp.StatusCode != http.StatusOK {
		if len(b) > maxBody {
			b = b[:maxBody]
		}
		return nil, fmt.Errorf("%w: status %d: %s", types.ErrUpstream, resp.StatusCode, string(b))
	}
	return b, nil
}

// GetJSON is GetBytes followed by json decoding into out. A body that is
// not the expected JSON wraps types.ErrUpstream.
func GetJSON(ctx context.Context, c *http.Client, url string, headers map[string]string, out any) error {
	b, err := GetBytes(ctx, c, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: decode: %v", types.ErrUpstream, err)
	}
	return nil
}

// Classify maps a context deadline onto types.ErrTransport; everything else
// is returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, types.ErrTransport) {
		return fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	return err
}
