package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
)

// DefaultCodeAssistEndpoint is the Gemini Code Assist API base URL.
const DefaultCodeAssistEndpoint = "https://cloudcode-pa.googleapis.com"

const codeAssistAPIVersion = "v1internal"

// ErrUnauthorized matches any API error with a 401 status.
var ErrUnauthorized = errors.New("unauthorized: access token may be expired")

// codeAssistHeaders mirror what the Gemini CLI sends.
var codeAssistHeaders = map[string]string{
	"X-Goog-Api-Client": "gl-node/22.0.0",
	"Client-Metadata":   `{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`,
}

// APIError is a non-2xx answer from the Code Assist API.
type APIError struct {
	Method     string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Method, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

type clientMetadata struct {
	IDEType    string `json:"ideType"`
	Platform   string `json:"platform"`
	PluginType string `json:"pluginType"`
}

type loadCodeAssistRequest struct {
	Metadata clientMetadata `json:"metadata"`
}

// CurrentTier is the subscription tier reported by loadCodeAssist.
type CurrentTier struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoadCodeAssistResponse is the subset of loadCodeAssist we use.
type LoadCodeAssistResponse struct {
	CurrentTier             *CurrentTier `json:"currentTier,omitempty"`
	CloudAICompanionProject string       `json:"cloudaicompanionProject,omitempty"`
}

// TierName returns the tier name, falling back to its id, then "unknown".
func (r *LoadCodeAssistResponse) TierName() string {
	if r == nil || r.CurrentTier == nil {
		return ""
	}
	if r.CurrentTier.Name != "" {
		return r.CurrentTier.Name
	}
	if r.CurrentTier.ID != "" {
		return r.CurrentTier.ID
	}
	return "unknown"
}

type retrieveUserQuotaRequest struct {
	Project string `json:"project"`
}

// Bucket is one quota bucket of retrieveUserQuota.
type Bucket struct {
	RemainingFraction *float64 `json:"remainingFraction,omitempty"`
	RemainingAmount   string   `json:"remainingAmount,omitempty"`
	ResetTime         string   `json:"resetTime,omitempty"`
	TokenType         string   `json:"tokenType,omitempty"`
	ModelID           string   `json:"modelId,omitempty"`
}

// Remaining returns the remaining fraction, 0 when absent.
func (b Bucket) Remaining() float64 {
	if b.RemainingFraction == nil {
		return 0
	}
	return *b.RemainingFraction
}

// RetrieveUserQuotaResponse is the retrieveUserQuota payload.
type RetrieveUserQuotaResponse struct {
	Buckets []Bucket `json:"buckets,omitempty"`
}

// Client talks to the Code Assist API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Code Assist client. Nil or empty arguments fall back to defaults.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	if baseURL == "" {
		baseURL = DefaultCodeAssistEndpoint
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// LoadCodeAssist discovers the account tier and its billing project.
func (c *Client) LoadCodeAssist(ctx context.Context, accessToken string) (*LoadCodeAssistResponse, error) {
	reqBody := loadCodeAssistRequest{
		Metadata: clientMetadata{
			IDEType:    "IDE_UNSPECIFIED",
			Platform:   "PLATFORM_UNSPECIFIED",
			PluginType: "GEMINI",
		},
	}

	body, err := c.post(ctx, accessToken, "loadCodeAssist", reqBody)
	if err != nil {
		return nil, err
	}

	var resp LoadCodeAssistResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse loadCodeAssist response: %w", err)
	}
	return &resp, nil
}

// RetrieveUserQuota returns the quota buckets of a project.
func (c *Client) RetrieveUserQuota(ctx context.Context, accessToken, project string) (*RetrieveUserQuotaResponse, error) {
	body, err := c.post(ctx, accessToken, "retrieveUserQuota", retrieveUserQuotaRequest{Project: project})
	if err != nil {
		return nil, err
	}

	var resp RetrieveUserQuotaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse retrieveUserQuota response: %w", err)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, accessToken, method string, payload any) ([]byte, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is empty")
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	apiURL := fmt.Sprintf("%s/%s:%s", c.baseURL, codeAssistAPIVersion, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range codeAssistHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	return body, nil
}
