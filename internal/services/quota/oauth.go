// Package quota resolves profile credentials and fetches Gemini Code Assist
// quota for them.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
)

// DefaultTokenEndpoint is Google's OAuth token endpoint.
const DefaultTokenEndpoint = "https://oauth2.googleapis.com/token"

// ErrMissingClient is returned when no OAuth client is configured.
var ErrMissingClient = errors.New("oauth client id/secret not configured")

// TokenResponse represents the OAuth token response from Google.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// RefreshAccessToken exchanges a refresh token for a new access token.
// A nil client uses a default one with a 30s timeout; an empty endpoint uses
// DefaultTokenEndpoint.
func RefreshAccessToken(ctx context.Context, client *http.Client, endpoint, refreshToken, clientID, clientSecret string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is empty")
	}
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingClient
	}
	if client == nil {
		client = defaultHTTPClient
	}
	if endpoint == "" {
		endpoint = DefaultTokenEndpoint
	}

	data := url.Values{}
	data.Set("client_id", clientID)
	data.Set("client_secret", clientSecret)
	data.Set("refresh_token", refreshToken)
	data.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	return &tokenResp, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
