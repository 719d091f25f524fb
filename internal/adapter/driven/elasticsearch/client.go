// Package elasticsearch implements the ClusterClient port over the
// Elasticsearch REST API with net/http.
package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/esdesk/internal/domain/model"
	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// DefaultTimeout bounds every request, including reading the body.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed response is kept in StatusError.
const maxErrorBody = 1 << 20

// Compile-time interface satisfaction check.
var _ driven.ClusterClient = (*Client)(nil)

// Client is an authenticated HTTP client for one cluster. It is safe for
// concurrent use. The detected version is cached for the client's lifetime
// and never refreshed.
type Client struct {
	baseURL  string
	http     *http.Client
	username string
	password string
	logger   *slog.Logger

	version atomic.Pointer[model.Version]
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client. Intended for tests that
// inject an httptest server client; the TLS toggle is not applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for version detection messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for baseURL. A trailing slash is stripped.
// insecure disables certificate verification and must only be set on explicit
// operator request. Basic auth is sent only when both username and password
// are non-empty.
func NewClient(baseURL string, insecure bool, username, password string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parse base URL: %q is not absolute", baseURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec // operator opt-in per endpoint
	}

	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{Transport: transport, Timeout: DefaultTimeout},
		username: username,
		password: password,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewFactory returns a driven.ClusterClientFactory producing Clients with the
// given request timeout.
func NewFactory(timeout time.Duration, logger *slog.Logger) driven.ClusterClientFactory {
	return func(s model.ConnectionSettings) (driven.ClusterClient, error) {
		return NewClient(s.URL, s.Insecure, s.Username, s.Password, WithTimeout(timeout), WithLogger(logger))
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type rootResponse struct {
	Version struct {
		Number string `json:"number"`
	} `json:"version"`
}

// DetectVersion reads version.number from the cluster root and caches it.
// Unparsable versions fail with model.ErrBadVersion and leave the cache empty.
func (c *Client) DetectVersion(ctx context.Context) (model.Version, error) {
	var root rootResponse
	if err := c.Get(ctx, "/", &root); err != nil {
		return model.Version{}, err
	}

	v, err := model.ParseVersion(root.Version.Number)
	if err != nil {
		return model.Version{}, fmt.Errorf("detect version of %s: %w", c.baseURL, err)
	}

	c.version.Store(&v)
	c.logger.Info("detected elasticsearch version", "url", c.baseURL, "version", v.String())
	return v, nil
}

// Version returns the cached version, if any.
func (c *Client) Version() (model.Version, bool) {
	v := c.version.Load()
	if v == nil {
		return model.Version{}, false
	}
	return *v, true
}

// Get sends a GET and decodes the JSON response into out (which may be nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete sends a DELETE and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

// GetRaw is Raw with GET and no body.
func (c *Client) GetRaw(ctx context.Context, path string) (model.RawResponse, error) {
	return c.Raw(ctx, http.MethodGet, path, nil)
}

// PostRaw is Raw with POST.
func (c *Client) PostRaw(ctx context.Context, path string, body []byte) (model.RawResponse, error) {
	return c.Raw(ctx, http.MethodPost, path, body)
}

// PutRaw is Raw with PUT.
func (c *Client) PutRaw(ctx context.Context, path string, body []byte) (model.RawResponse, error) {
	return c.Raw(ctx, http.MethodPut, path, body)
}

// DeleteRaw is Raw with DELETE and no body.
func (c *Client) DeleteRaw(ctx context.Context, path string) (model.RawResponse, error) {
	return c.Raw(ctx, http.MethodDelete, path, nil)
}

// Raw sends body verbatim and returns the status code and response text
// whatever they are. Only transport failures produce an error.
func (c *Client) Raw(ctx context.Context, method, path string, body []byte) (model.RawResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return model.RawResponse{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeFor(path))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.RawResponse{}, &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.RawResponse{}, &RequestError{Method: method, Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	return model.RawResponse{StatusCode: resp.StatusCode, Body: string(text)}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(text)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Method: method, Path: path, Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// contentTypeFor picks the body type for raw requests; the bulk and
// multi-search APIs require newline-delimited JSON.
func contentTypeFor(path string) string {
	p, _, _ := strings.Cut(path, "?")
	if strings.HasSuffix(p, "/_bulk") || strings.HasSuffix(p, "/_msearch") || p == "_bulk" || p == "_msearch" {
		return "application/x-ndjson"
	}
	return "application/json"
}
