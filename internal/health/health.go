// Package health talks to a worker's liveness and disposal endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slipstream/slip/internal/ports"
	"github.com/slipstream/slip/internal/util"
)

// Worker HTTP contract.
const (
	HealthPath  = "/global/health"
	DisposePath = "/instance/dispose"
)

// Timeouts for probes.
const (
	DefaultTimeout        = 2 * time.Second
	DefaultDisposeTimeout = 2 * time.Second
)

// maxBodyBytes caps how much of a health response is read.
const maxBodyBytes = 64 << 10

// Result is the outcome of one health probe. It is never persisted.
type Result struct {
	Healthy bool
	Version string
}

// Response is the JSON body served on HealthPath. Pointer fields let the
// decoder tell a missing field from a zero value.
type Response struct {
	Healthy *bool   `json:"healthy"`
	Version *string `json:"version"`
}

// Client probes workers on localhost.
type Client struct {
	// HTTP is the client used for every request. Its own Timeout is not
	// relied upon; each call carries a context deadline.
	HTTP *http.Client

	// Host defaults to localhost.
	Host string
}

// NewClient returns a Client with a dedicated transport that does not keep
// idle connections to workers that may be about to exit.
func NewClient() *Client {
	return &Client{
		HTTP: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives: true,
				Proxy:             nil,
			},
		},
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) url(port int, path string) string {
	host := c.Host
	if host == "" {
		host = ports.Host
	}
	return fmt.Sprintf("http://%s:%d%s", host, port, path)
}

// Check issues a single GET to HealthPath bounded by timeout (DefaultTimeout if
// zero). Any network error, non-2xx status, timeout, or malformed body yields
// Result{Healthy: false}. The request is cancelled when the deadline passes.
func (c *Client) Check(ctx context.Context, port int, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(port, HealthPath), nil)
	if err != nil {
		return Result{}
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Result{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}
	}

	var body Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return Result{}
	}
	if body.Healthy == nil || body.Version == nil {
		return Result{}
	}
	return Result{Healthy: *body.Healthy, Version: *body.Version}
}

// Dispose asks the worker on port to exit cleanly. It returns true on a 2xx
// response. Transient transport errors get one more attempt; connection
// refused does not. The whole call is bounded by DefaultDisposeTimeout.
func (c *Client) Dispose(ctx context.Context, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, DefaultDisposeTimeout)
	defer cancel()

	cfg := util.DefaultRetryConfig()
	cfg.MaxAttempts = 2

	ok, err := util.Retry(ctx, cfg, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(port, DisposePath), nil)
		if err != nil {
			return false, util.MarkPermanent(err)
		}
		resp, err := c.httpClient().Do(req)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
	})
	return err == nil && ok
}
