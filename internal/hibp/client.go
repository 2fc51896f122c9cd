package hibp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; the client talks to a single host so the
// per-host numbers are what matter
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 2
	defaultIdleConnTimeout     = 60 * time.Second
)

// DefaultBaseURL is the breachedaccount endpoint of the HIBP v3 API.
const DefaultBaseURL = "https://haveibeenpwned.com/api/v3/breachedaccount/"

// DefaultUserAgent identifies this client to the HIBP API, which rejects
// requests that carry no user agent.
const DefaultUserAgent = "BreachWatch Breach Monitor"

// apiKeyHeader is the header the HIBP API reads the subscription key from.
const apiKeyHeader = "hibp-api-key"

// Response holds the result of one breachedaccount lookup.
//
// Errors are carried in the Error field rather than returned separately;
// a transport failure and an HTTP error status are distinguished by
// Error being non-nil versus StatusCode alone.
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed
	// before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport-level error (connection failure,
	// timeout, unreadable body). nil means the request completed, though
	// StatusCode may still indicate an API error.
	Error error
}

// Client performs breachedaccount lookups against the HIBP API.
//
// Every request carries the configured API key, a user agent, and
// truncateResponse=false so breach metadata is included. Redirects are
// followed (the net/http default). The timeout is applied per request via
// context cancellation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration
}

// NewClient creates a lookup [Client].
//
// baseURL may be empty, in which case [DefaultBaseURL] is used. A missing
// trailing slash is added so that email addresses append cleanly.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		baseURL:   baseURL,
		apiKey:    apiKey,
		userAgent: DefaultUserAgent,
		timeout:   timeout,
	}
}

// Fetch looks up the breaches recorded for a single email address.
//
// Fetch always returns a Response; transport errors are captured in the
// Error field. The caller is responsible for interpreting the status code
// (200 carries a breach array, 404 means no known breaches).
func (c *Client) Fetch(ctx context.Context, email string) Response {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	lookupURL := c.baseURL + url.PathEscape(email) + "?truncateResponse=false"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	limitedReader := io.LimitReader(resp.Body, maxResponseBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. The client remains usable afterwards; new
// connections are established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
