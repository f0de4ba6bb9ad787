// ABOUTME: HTTP client for the Power BI REST API.
// ABOUTME: Holds credentials and the bearer token, and issues authenticated requests against a workspace.

// Package powerbi wraps the Power BI administrative REST API for a single workspace.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	DefaultAPIURL       = "https://api.powerbi.com/v1.0/myorg"
)

type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Client is safe for concurrent use: nothing is mutated after New returns.
type Client struct {
	creds        Credentials
	workspaceID  string
	authorityURL string
	apiURL       string
	accessToken  string
	httpClient   *http.Client
	log          *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthorityURL overrides the identity provider host the token is requested from.
func WithAuthorityURL(u string) Option {
	return func(c *Client) { c.authorityURL = strings.TrimSuffix(u, "/") }
}

func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = strings.TrimSuffix(u, "/") }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New exchanges the client credentials for an access token and returns a
// client bound to workspaceID. The token is fetched once and never refreshed.
func New(ctx context.Context, creds Credentials, workspaceID string, opts ...Option) (*Client, error) {
	c := &Client{
		creds:        creds,
		workspaceID:  workspaceID,
		authorityURL: DefaultAuthorityURL,
		apiURL:       DefaultAPIURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	token, err := c.fetchToken(ctx)
	if err != nil {
		return nil, err
	}
	c.accessToken = token

	c.log.Debug("authenticated",
		zap.String("tenant", creds.TenantID),
		zap.String("workspace", workspaceID))

	return c, nil
}

func (c *Client) AccessToken() string {
	return c.accessToken
}

func (c *Client) WorkspaceID() string {
	return c.workspaceID
}

// groupPath builds a path below the client's workspace, escaping each segment.
func (c *Client) groupPath(segments ...string) string {
	return "/groups/" + url.PathEscape(c.workspaceID) + joinPath(segments...)
}

func joinPath(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// do sends an authenticated request and returns the response with its body
// already read and closed.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}

	c.log.Debug("power bi request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return resp, body, nil
}

// getRaw issues a GET and returns the body of a 200 response verbatim.
func (c *Client) getRaw(ctx context.Context, op, path string) ([]byte, error) {
	resp, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, dst any) error {
	body, err := c.getRaw(ctx, op, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

type collection[T any] struct {
	Value []T `json:"value"`
}

func getCollection[T any](ctx context.Context, c *Client, op, path string) ([]T, error) {
	var result collection[T]
	if err := c.getJSON(ctx, op, path, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}
