package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edubridge-labs/tokenvault/internal/config"
	"github.com/edubridge-labs/tokenvault/internal/token"
)

// RemoteClient talks to a district-level token authority over HTTP. All
// failures collapse into token.ErrRemoteUnavailable so the bridge can treat
// "remote broken" uniformly, whatever actually went wrong on the wire.
type RemoteClient struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	healthClient *http.Client
}

func NewRemoteClient(cfg *config.AuthorityConfig) *RemoteClient {
	return &RemoteClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		// Health probes get a shorter leash than data calls.
		healthClient: &http.Client{
			Timeout: time.Duration(cfg.HealthTimeoutSeconds) * time.Second,
		},
	}
}

type remoteTokenResponse struct {
	Value      string     `json:"value"`
	Type       token.Type `json:"type"`
	EntityID   int64      `json:"entityId"`
	EntityType string     `json:"entityType"`
	SchoolYear string     `json:"schoolYear"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

type remoteGenerateRequest struct {
	Type        token.Type `json:"type"`
	EntityID    int64      `json:"entityId"`
	VendorScope *string    `json:"vendorScope,omitempty"`
	CreatedBy   string     `json:"createdBy,omitempty"`
}

type remoteResolveRequest struct {
	Value        string     `json:"value"`
	ExpectedType token.Type `json:"expectedType"`
}

type remoteResolveResponse struct {
	EntityID   int64      `json:"entityId"`
	EntityType string     `json:"entityType"`
	TokenType  token.Type `json:"tokenType"`
	SchoolYear string     `json:"schoolYear"`
}

// Generate asks the remote authority to mint (or return) a token.
func (c *RemoteClient) Generate(ctx context.Context, typ token.Type, entityID int64, vendorScope *string, createdBy string) (*remoteTokenResponse, error) {
	req := remoteGenerateRequest{Type: typ, EntityID: entityID, VendorScope: vendorScope, CreatedBy: createdBy}
	var resp remoteTokenResponse
	if err := c.post(ctx, c.client, "/api/v1/tokens/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resolve asks the remote authority to map a token back to its entity.
func (c *RemoteClient) Resolve(ctx context.Context, value string, expected token.Type) (*remoteResolveResponse, error) {
	req := remoteResolveRequest{Value: value, ExpectedType: expected}
	var resp remoteResolveResponse
	if err := c.post(ctx, c.client, "/api/v1/tokens/resolve", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Healthy probes the remote health endpoint.
func (c *RemoteClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (c *RemoteClient) post(ctx context.Context, client *http.Client, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", token.ErrRemoteUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", token.ErrRemoteUnavailable, err)
	}
	c.setHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", token.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", token.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", token.ErrRemoteUnavailable, resp.StatusCode, truncate(raw, 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", token.ErrRemoteUnavailable, err)
	}
	return nil
}

func (c *RemoteClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
