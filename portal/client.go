// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alumnet-portal/chatsync/lib/netutil"
	"github.com/alumnet-portal/chatsync/lib/secret"
)

// ClientConfig configures a portal REST client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://alumni.example.edu/api".
	// Endpoint paths are appended to it.
	BaseURL string

	// HTTPClient defaults to a client with a 15 second timeout.
	HTTPClient *http.Client

	// UserAgent is sent on every request when set.
	UserAgent string

	Logger *slog.Logger
}

// Client talks to one portal deployment. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient validates config and returns a client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("portal: BaseURL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("portal: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("portal: BaseURL must be http or https, got %q", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		userAgent:  config.UserAgent,
		logger:     logger,
	}, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Session binds the client to a credential. The session does not own
// the buffer; the caller closes it at logout.
func (c *Client) Session(credential *secret.Buffer) *Session {
	return &Session{client: c, credential: credential}
}

// CloseIdleConnections releases pooled connections at logout.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// doRequest sends one request and returns the body of a 2xx response.
// Other statuses produce an *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, credential *secret.Buffer, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("portal: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("portal: creating request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if credential != nil {
		request.Header.Set("Authorization", "Bearer "+credential.String())
	}
	if c.userAgent != "" {
		request.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("portal: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("portal: reading %s %s response: %w", method, path, err)
	}
	c.logger.Debug("portal request",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"duration", time.Since(start),
	)

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &APIError{Method: method, Path: path, StatusCode: response.StatusCode}
	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(responseBody, &structured) == nil {
		apiErr.Message = structured.Message
		if apiErr.Message == "" {
			apiErr.Message = structured.Error
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(responseBody))
	}
	return nil, apiErr
}
