package controlplane

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
	"github.com/slc-run/slc-demo-backend/internal/logger"
)

const (
	// DefaultTimeout bounds a single control plane exchange.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBundleBytes is the ceiling for deployable code.
	DefaultMaxBundleBytes = 64 * 1024

	adminHeader  = "x-slc-admin"
	apiKeyHeader = "x-slc-api-key"
)

// Client talks to the platform's project management endpoints. Every call is
// a single request/response exchange; there are no retries.
type Client struct {
	baseURL        string
	adminToken     string
	maxBundleBytes int
	httpClient     *http.Client
	metrics        *Metrics
}

type Options struct {
	AdminToken     string
	Timeout        time.Duration
	MaxBundleBytes int
	HTTPClient     *http.Client
}

// NewClient creates a control plane client rooted at baseURL.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBundleBytes <= 0 {
		opts.MaxBundleBytes = DefaultMaxBundleBytes
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		adminToken:     opts.AdminToken,
		maxBundleBytes: opts.MaxBundleBytes,
		httpClient:     httpClient,
		metrics:        &Metrics{},
	}
}

// Ready reports whether the admin credential is configured.
func (c *Client) Ready() error {
	if c.adminToken == "" {
		return domain.NewConfigurationError("Demo service not configured. Missing SLC_DEMO_ADMIN_TOKEN.")
	}
	return nil
}

type projectRequest struct {
	ProjectID string `json:"projectId"`
}

type createProjectResponse struct {
	APIKey string `json:"apiKey"`
}

type deployRequest struct {
	Name   string `json:"name"`
	Bundle string `json:"bundle"`
}

type upstreamError struct {
	Error string `json:"error"`
}

// CreateProject creates projectID on the control plane and returns its
// project-scoped credential.
func (c *Client) CreateProject(ctx context.Context, projectID string) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}
	if projectID == "" {
		return "", domain.NewValidationError("Missing required field: projectId")
	}

	log := logger.New(ctx)
	status, body, err := c.post(ctx, "create_project", "/v1/_control/create-project",
		map[string]string{adminHeader: c.adminToken}, projectRequest{ProjectID: projectID})
	if err != nil {
		log.LogError("create_project", err)
		return "", domain.NewUpstreamError(domain.KindProvisioning, 0, "Failed to create project: "+err.Error(), err)
	}
	if !isSuccess(status) {
		msg := upstreamMessage(body)
		log.LogWarnf("create_project", "project_id=%s upstream status=%d error=%s", projectID, status, msg)
		return "", domain.NewUpstreamError(domain.KindProvisioning, status, "Failed to create project: "+msg, nil)
	}

	var resp createProjectResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.APIKey == "" {
		log.LogErrorf("create_project", "project_id=%s created without credential", projectID)
		return "", domain.NewUpstreamError(domain.KindProvisioning, http.StatusInternalServerError,
			"Failed to get API key from project creation", domain.ErrMissingCredential)
	}

	log.LogInfof("create_project", "project_id=%s created", projectID)
	return resp.APIKey, nil
}

// DeployBundle uploads code as app appName using the project credential.
// Oversized code is rejected before any request is made.
func (c *Client) DeployBundle(ctx context.Context, credential, appName, code string) (*domain.Deployment, error) {
	if len(code) > c.maxBundleBytes {
		return nil, domain.NewPayloadTooLargeError(c.maxBundleBytes)
	}
	if credential == "" {
		return nil, domain.NewValidationError("Missing project credential")
	}

	log := logger.New(ctx)
	status, body, err := c.post(ctx, "deploy_app", "/v1/_control/deploy-app",
		map[string]string{apiKeyHeader: credential}, deployRequest{Name: appName, Bundle: code})
	if err != nil {
		log.LogError("deploy_app", err)
		return nil, domain.NewUpstreamError(domain.KindDeployment, 0, "Failed to deploy app: "+err.Error(), err)
	}
	if !isSuccess(status) {
		msg := upstreamMessage(body)
		log.LogWarnf("deploy_app", "app=%s upstream status=%d error=%s", appName, status, msg)
		return nil, domain.NewUpstreamError(domain.KindDeployment, status, "Failed to deploy app: "+msg, nil)
	}

	deployment := &domain.Deployment{Name: appName}
	if len(bytes.TrimSpace(body)) > 0 {
		var meta map[string]interface{}
		if err := json.Unmarshal(body, &meta); err == nil {
			deployment.Metadata = meta
		}
	}

	log.LogInfof("deploy_app", "app=%s deployed bytes=%d", appName, len(code))
	return deployment, nil
}

// RevokeProject disables projectID. The upstream status is reported as is;
// callers doing best-effort cleanup decide whether to ignore it.
func (c *Client) RevokeProject(ctx context.Context, projectID string) error {
	if err := c.Ready(); err != nil {
		return err
	}
	if projectID == "" {
		return domain.NewValidationError("Missing required field: projectId")
	}

	log := logger.New(ctx)
	status, body, err := c.post(ctx, "revoke_project", "/v1/_control/revoke-project",
		map[string]string{adminHeader: c.adminToken}, projectRequest{ProjectID: projectID})
	if err != nil {
		log.LogError("revoke_project", err)
		return domain.NewUpstreamError(domain.KindCleanup, 0, "Failed to revoke project: "+err.Error(), err)
	}
	if !isSuccess(status) {
		msg := upstreamMessage(body)
		log.LogWarnf("revoke_project", "project_id=%s upstream status=%d error=%s", projectID, status, msg)
		return domain.NewUpstreamError(domain.KindCleanup, status, "Failed to revoke project: "+msg, nil)
	}

	log.LogInfof("revoke_project", "project_id=%s revoked", projectID)
	return nil
}

// Metrics returns a snapshot of the client's call counters.
func (c *Client) Metrics() Metrics {
	return c.metrics.snapshot()
}

func (c *Client) post(ctx context.Context, op, path string, headers map[string]string, payload interface{}) (int, []byte, error) {
	start := time.Now()

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.record(op, time.Since(start), false)
		return 0, nil, fmt.Errorf("failed to call control plane: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.record(op, time.Since(start), err == nil && isSuccess(resp.StatusCode))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func upstreamMessage(body []byte) string {
	var ue upstreamError
	if err := json.Unmarshal(body, &ue); err != nil || ue.Error == "" {
		return "Unknown error"
	}
	return ue.Error
}
