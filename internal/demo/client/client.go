// Package client calls the demo API from Go. It is what democtl uses, and its
// Cleanup method lets a scheduler.Timer revoke a demo when it expires.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
	api "github.com/slc-run/slc-demo-backend/internal/demo/http"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultBasePath = "/api/demo"
)

// APIError is a non-2xx answer from the demo API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("demo api returned status %d: %s", e.Status, e.Message)
}

type Options struct {
	// CleanupKey is sent as X-API-Key on cleanup calls when set.
	CleanupKey string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	cleanupKey string
	httpClient *http.Client
}

// NewClient creates a client for the demo API served at baseURL
// (e.g. http://localhost:8080).
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + DefaultBasePath,
		cleanupKey: opts.CleanupKey,
		httpClient: httpClient,
	}
}

// StartDemo provisions a demo from a built-in boilerplate.
func (c *Client) StartDemo(ctx context.Context, boilerplateID string) (*api.DemoResponse, error) {
	var out api.DemoResponse
	if err := c.do(ctx, http.MethodPost, "/start", nil, api.StartDemoRequest{BoilerplateID: boilerplateID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartCustomDemo provisions a demo running code.
func (c *Client) StartCustomDemo(ctx context.Context, code, appName string) (*api.DemoResponse, error) {
	var out api.DemoResponse
	req := api.StartCustomDemoRequest{Code: code, AppName: appName}
	if err := c.do(ctx, http.MethodPost, "/start-custom", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CleanupProject revokes projectID and returns the API's result.
func (c *Client) CleanupProject(ctx context.Context, projectID string) (*domain.CleanupResult, error) {
	var headers map[string]string
	if c.cleanupKey != "" {
		headers = map[string]string{"X-API-Key": c.cleanupKey}
	}

	var out domain.CleanupResult
	if err := c.do(ctx, http.MethodPost, "/cleanup", headers, api.CleanupRequest{ProjectID: projectID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cleanup satisfies scheduler.Cleaner.
func (c *Client) Cleanup(ctx context.Context, projectID string) error {
	_, err := c.CleanupProject(ctx, projectID)
	return err
}

// CheckStatus asks the API how long a demo has left.
func (c *Client) CheckStatus(ctx context.Context, expiresAt string) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/status", nil, api.StatusRequest{ExpiresAt: expiresAt}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Boilerplates lists the templates the API can deploy.
func (c *Client) Boilerplates(ctx context.Context) ([]api.BoilerplateSummary, error) {
	var out struct {
		Boilerplates []api.BoilerplateSummary `json:"boilerplates"`
	}
	if err := c.do(ctx, http.MethodGet, "/boilerplates", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Boilerplates, nil
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call demo api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
