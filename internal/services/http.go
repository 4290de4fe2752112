package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every provider and backend request, retries included.
	DefaultTimeout = 12 * time.Second

	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
	maxErrorBody   = 200
)

// Options configures the HTTP behaviour shared by every client in this package.
type Options struct {
	BaseURL    string       // overrides the provider default (tests, self-hosted backends)
	HTTPClient *http.Client // base client; its Transport is reused
	Timeout    time.Duration
	RateLimit  float64 // requests per second; 0 disables limiting
	RetryDelay time.Duration
	Logger     *log.Logger
}

// client performs JSON requests against one service with rate limiting and
// exponential backoff for idempotent reads.
type client struct {
	service    string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	retryDelay time.Duration
	logger     *log.Logger
	query      url.Values  // added to every request (api keys)
	header     http.Header // added to every request (client ids)
}

func newClient(service, defaultBaseURL string, opts Options) *client {
	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var transport http.RoundTripper
	if opts.HTTPClient != nil {
		transport = opts.HTTPClient.Transport
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = baseRetryDelay
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		limiter:    limiter,
		timeout:    timeout,
		retryDelay: retryDelay,
		logger:     shared.WithLogger(logger, "service", service),
		query:      url.Values{},
		header:     http.Header{},
	}
}

// get performs a GET, retrying transport failures and 5xx responses. All attempts share
// one deadline of the client timeout; a retry that could not start before it is skipped.
func (c *client) get(ctx context.Context, path string, query url.Values, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
				c.logger.Warn("giving up before deadline", "path", path, "attempts", attempt)
				return lastErr
			}
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "path", path)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &shared.TransportError{Op: http.MethodGet, URL: c.baseURL + path, Err: ctx.Err()}
			}
		}

		err := c.do(ctx, http.MethodGet, path, query, nil, result)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		c.logger.Warn("request failed, will retry", "path", path, "error", err)
	}
	return lastErr
}

// do performs a single request. Non-2xx responses become [shared.UpstreamError] and
// failures without a response become [shared.TransportError].
func (c *client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &shared.TransportError{Op: method, URL: c.baseURL + path, Err: err}
		}
	}

	params := url.Values{}
	for k, v := range c.query {
		params[k] = v
	}
	for k, v := range query {
		params[k] = v
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header[k] = v
	}

	c.logger.Debug("request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// reqURL may carry credentials in its query, so only the path is reported
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return &shared.TransportError{Op: method, URL: c.baseURL + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &shared.TransportError{Op: method, URL: c.baseURL + path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.UpstreamError{Service: c.service, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func retryable(err error) bool {
	var upstream *shared.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode >= 500
	}
	return errors.Is(err, shared.ErrTransport)
}

// errorMessage extracts {"error": "..."} or {"status_message": "..."} bodies, falling back to raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error         any    `json:"error"`
		Message       string `json:"message"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.StatusMessage != "":
			return payload.StatusMessage
		case payload.Message != "":
			return payload.Message
		}
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
