// ABOUTME: HTTP client for the fabric planner API
// ABOUTME: Wraps API calls with proper error handling for CLI usage

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/markalston/fabric-planner/backend/models"
)

// Client is the API client for the fabric planner backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client with the given base URL
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// HealthResponse represents the /api/v1/health endpoint response
type HealthResponse = models.HealthResponse

// ErrorResponse represents an API error
type ErrorResponse = models.ErrorResponse

// CompileResponse is the /api/v1/compile response: the compile result plus
// cache and blocking flags
type CompileResponse struct {
	models.CompileResult
	Cached          bool     `json:"cached"`
	Blocking        bool     `json:"blocking"`
	BlockingReasons []string `json:"blockingReasons,omitempty"`
}

// SaveResponse is returned when a fabric is persisted
type SaveResponse struct {
	FabricID    string                `json:"fabricId"`
	Fingerprint string                `json:"fingerprint"`
	Metadata    models.WiringMetadata `json:"metadata"`
	Warnings    []string              `json:"warnings"`
}

// Health calls GET /api/v1/health
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Compile calls POST /api/v1/compile
func (c *Client) Compile(ctx context.Context, spec models.FabricSpec) (*CompileResponse, error) {
	var result CompileResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/compile", spec, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveFabric calls PUT /api/v1/fabrics/{id}. Blocking specs are refused by
// the backend and surface as an error.
func (c *Client) SaveFabric(ctx context.Context, fabricID string, spec models.FabricSpec) (*SaveResponse, error) {
	var saved SaveResponse
	if err := c.do(ctx, http.MethodPut, "/api/v1/fabrics/"+url.PathEscape(fabricID), spec, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// FabricYAML calls GET /api/v1/fabrics/{id}?format=yaml and returns the
// multi-document bundle
func (c *Client) FabricYAML(ctx context.Context, fabricID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/fabrics/"+url.PathEscape(fabricID)+"?format=yaml", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invalid response from backend: %w", err)
	}
	return data, nil
}

// do sends an optional JSON body and decodes a 200 response into out
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal input: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	return nil
}

// handleRequestError converts transport errors into user-friendly messages
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("request canceled")
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("request timed out")
	}
	return fmt.Errorf("cannot connect to backend at %s: %w", c.baseURL, err)
}

// handleErrorResponse parses API error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	if errResp.Details != "" {
		return fmt.Errorf("backend error: %s: %s", errResp.Error, errResp.Details)
	}
	return fmt.Errorf("backend error: %s", errResp.Error)
}
