package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	DefaultBaseURL = "https://api.github.com"

	apiVersion = "2022-11-28"

	// maxResponseSize bounds JSON bodies; log archives use maxLogArchiveSize.
	maxResponseSize   = 16 << 20
	maxLogArchiveSize = 64 << 20
)

// ErrTokenNotConfigured is returned when no credential is available.
var ErrTokenNotConfigured = errors.New("github token not configured")

// Options configures a Client. Only Token is required.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a small GitHub REST client covering repositories, Actions
// workflows, runs, jobs and logs. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, ErrTokenNotConfigured
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      opts.Token,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) GetBaseURL() string {
	return c.baseURL
}

func (c *Client) GetTimeout() time.Duration {
	return c.timeout
}

// do issues an authenticated request against a path relative to the base
// URL and returns the fully read body. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, http.Header, error) {
	return c.doURL(ctx, method, c.baseURL+path, requestBody, maxResponseSize)
}

func (c *Client) doURL(ctx context.Context, method, rawURL string, requestBody any, limit int64) ([]byte, http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("github: creating request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", apiVersion)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("github: %s %s timed out after %v: %w", method, redact(rawURL), c.timeout, context.DeadlineExceeded)
		}
		return nil, nil, fmt.Errorf("github: %s %s: %w", method, redact(rawURL), err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("github: reading response body: %w", err)
	}

	c.logger.Debug("github request",
		"method", method,
		"url", redact(rawURL),
		"status", response.StatusCode,
		"duration", time.Since(start),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, nil, parseAPIError(response.StatusCode, body)
	}
	return body, response.Header, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("github: decoding %s: %w", path, err)
	}
	return nil
}

// getPages follows rel="next" links starting at path and hands each page
// body to collect.
func (c *Client) getPages(ctx context.Context, path string, collect func([]byte) error) error {
	next := c.baseURL + path
	for next != "" {
		body, header, err := c.doURL(ctx, http.MethodGet, next, nil, maxResponseSize)
		if err != nil {
			return err
		}
		if err := collect(body); err != nil {
			return fmt.Errorf("github: decoding %s: %w", path, err)
		}
		next = parseLinkNext(header.Get("Link"))
	}
	return nil
}

// parseLinkNext extracts the rel="next" URL from an RFC 5988 Link header.
func parseLinkNext(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.SplitN(strings.TrimSpace(part), ";", 2)
		if len(segments) != 2 || !strings.Contains(segments[1], `rel="next"`) {
			continue
		}
		link := strings.TrimSpace(segments[0])
		if strings.HasPrefix(link, "<") && strings.HasSuffix(link, ">") {
			return link[1 : len(link)-1]
		}
	}
	return ""
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

// redact drops the query string, which on redirected log URLs carries a
// signed token.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
