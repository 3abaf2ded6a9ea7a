// Package redmine provides a REST client for the Redmine issue tracker.
//
// Every call returns a Result envelope instead of panicking or leaking
// transport details: a non-2xx status or a network failure is reported in
// Result.Err with the response body kept for diagnostics.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielolaszy/tasklane/internal/logging"
)

// ErrNotConfigured is returned when the client has no base URL or API key.
var ErrNotConfigured = errors.New("redmine client not configured")

const defaultTimeout = 30 * time.Second

// Result is the normalized outcome of a single Redmine API call.
type Result struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Body is the raw response body. Empty for 204 responses.
	Body []byte

	// Err is set when the request failed or the status was not 2xx.
	Err error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Decode unmarshals the body into v. It returns the call error if there is one.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode redmine response: %w", err)
	}
	return nil
}

// Client encapsulates the Redmine REST API.
type Client struct {
	baseURL    string
	publicURL  string
	apiKey     string
	httpClient *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	PublicURL string
	APIKey    string
	Timeout   time.Duration

	// HTTPClient overrides the default client. Its Timeout is left untouched.
	HTTPClient *http.Client
}

// NewClient creates a Redmine client. It does not contact the server.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" || opts.APIKey == "" {
		return nil, ErrNotConfigured
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = opts.BaseURL
	}

	logging.Debug("redmine configuration",
		"base_url", opts.BaseURL,
		"api_key", logging.MaskSensitive(opts.APIKey))

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		publicURL:  strings.TrimRight(publicURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
	}, nil
}

// Get issues a GET request for pathWithQuery, e.g. "/issues.json?status_id=open".
func (c *Client) Get(ctx context.Context, pathWithQuery string) Result {
	return c.do(ctx, http.MethodGet, pathWithQuery, nil)
}

// Post issues a POST request with payload encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, payload any) Result {
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) Result {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Result{Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("X-Redmine-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("redmine %s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{
			StatusCode: resp.StatusCode,
			Body:       data,
			Err:        fmt.Errorf("redmine %s %s: HTTP %d: %s", method, path, resp.StatusCode, summarize(data)),
		}
	}

	return Result{StatusCode: resp.StatusCode, Body: data}
}

// IssueURL returns the browser link for an issue id.
func (c *Client) IssueURL(id string) string {
	if id == "" {
		return ""
	}
	return c.publicURL + "/issues/" + id
}

// summarize trims an error body so log lines stay readable.
func summarize(body []byte) string {
	const limit = 300
	text := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(text) > limit {
		return string([]rune(text)[:limit]) + "..."
	}
	return text
}
