package ors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"fleet-route-service/internal/ports"
)

// Config holds the provider limits and credentials for one run. Constructed
// once in the composition root and passed into the client; nothing here is
// process-global.
type Config struct {
	APIKey  string
	BaseURL string
	Profile string

	// MaxMatrixLocations is the provider's per-call point limit on the
	// matrix endpoint.
	MaxMatrixLocations int
	// MatrixBlockSize is the partition block for oversized matrix queries.
	// Invariant: 2×MatrixBlockSize must not exceed MaxMatrixLocations.
	MatrixBlockSize int
	// MaxTraceWaypoints is the per-call waypoint limit on the directions
	// endpoint.
	MaxTraceWaypoints int

	// InterCallDelay is the mandatory pause between chunked sub-requests to
	// stay under the provider's rate ceiling.
	InterCallDelay time.Duration

	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openrouteservice.org"
	}
	if c.Profile == "" {
		c.Profile = "driving-car"
	}
	if c.MaxMatrixLocations <= 0 {
		c.MaxMatrixLocations = 50
	}
	if c.MatrixBlockSize <= 0 {
		c.MatrixBlockSize = 15
	}
	if c.MaxTraceWaypoints <= 0 {
		c.MaxTraceWaypoints = 45
	}
	if c.InterCallDelay <= 0 {
		c.InterCallDelay = 1500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		// Generous: matrix calls on cold provider caches run tens of seconds.
		c.Timeout = 70 * time.Second
	}
}

// Client talks to OpenRouteService with bounded retry, rate-limit backoff,
// and quota classification. It implements ports.MatrixProvider and
// ports.TraceProvider and is safe for concurrent use.
type Client struct {
	session *http.Client
	cfg     Config
	cache   ports.MatrixCache

	// sleep is swapped out by tests so chunked requests don't stall them.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient validates the configuration and builds a Client. cache may be
// nil to disable persistent matrix caching.
func NewClient(cfg Config, cache ports.MatrixCache) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ors client: api key is empty")
	}
	cfg.applyDefaults()

	if 2*cfg.MatrixBlockSize > cfg.MaxMatrixLocations {
		return nil, fmt.Errorf(
			"ors client: matrix block size %d too large for a %d-location call limit",
			cfg.MatrixBlockSize, cfg.MaxMatrixLocations,
		)
	}

	return &Client{
		session: &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		cache:   cache,
		sleep:   sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry executes a request with classified failure handling:
//
//   - quota/auth failures (401, 403, or a quota complaint in the body) are
//     returned immediately as ports.QuotaError — switching credentials is a
//     caller concern;
//   - rate limiting (429) backs off long before retrying;
//   - transient server/network failures back off short and retry;
//
// bounded to maxAttempts total attempts before surfacing
// ports.ProviderUnavailableError.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	const maxAttempts = 5
	shortBackoff := 500 * time.Millisecond
	longBackoff := 5 * time.Second

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var backoff time.Duration
		var he *httpStatusError
		if errors.As(err, &he) {
			switch {
			case he.Code == http.StatusUnauthorized || he.Code == http.StatusForbidden ||
				strings.Contains(strings.ToLower(he.Body), "quota"):
				return nil, &ports.QuotaError{Code: he.Code, Body: he.Body}
			case he.Code == http.StatusTooManyRequests:
				backoff = longBackoff
				longBackoff *= 2
			case he.Code >= 500:
				backoff = shortBackoff
				shortBackoff *= 2
			default:
				return nil, lastErr
			}
		} else {
			var netErr net.Error
			if !errors.As(err, &netErr) {
				return nil, lastErr
			}
			backoff = shortBackoff
			shortBackoff *= 2
		}

		if attempt == maxAttempts {
			break
		}
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, &ports.ProviderUnavailableError{Attempts: maxAttempts, Last: lastErr}
}
