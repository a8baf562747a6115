package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// OAuthCredsFile is the OAuth token file inside a profile directory.
const OAuthCredsFile = "oauth_creds.json"

// Resolver loads profile credentials and refreshes expired OAuth tokens.
type Resolver struct {
	HTTPClient    *http.Client
	Now           func() time.Time
	APIKey        string
	ClientID      string
	ClientSecret  string
	TokenEndpoint string
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve returns the credentials of a profile directory, or nil when there is
// neither a static key nor an OAuth file. An expired OAuth token is refreshed
// once; on refresh failure the stale credentials are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, profileDir string) *models.Credentials {
	creds := &models.Credentials{APIKey: r.APIKey}

	path := filepath.Join(profileDir, OAuthCredsFile)
	found, err := readOAuthFile(path, creds)
	if err != nil {
		logger.Warn("Ignoring unreadable credentials file", "path", path, "error", err)
	}

	if !found && creds.APIKey == "" {
		return nil
	}

	if creds.NeedsRefresh(r.now()) {
		r.refresh(ctx, creds)
	}

	return creds
}

func (r *Resolver) refresh(ctx context.Context, creds *models.Credentials) {
	tokenResp, err := RefreshAccessToken(ctx, r.HTTPClient, r.TokenEndpoint, creds.RefreshToken, r.ClientID, r.ClientSecret)
	if err != nil {
		logger.Warn("Token refresh failed", "path", creds.OAuthPath, "expired_at", creds.Expiry(), "error", err)
		return
	}

	creds.AccessToken = tokenResp.AccessToken
	creds.ExpiryDate = r.now().UnixMilli() + int64(tokenResp.ExpiresIn)*1000
	creds.TokenRefreshed = true

	if err := persistToken(creds); err != nil {
		logger.Warn("Failed to persist refreshed token", "path", creds.OAuthPath, "error", err)
		return
	}
	logger.Info("Refreshed access token", "path", creds.OAuthPath, "expires_at", creds.Expiry())
}

// readOAuthFile merges the OAuth file into creds. OAuth fields win over the
// static key. Returns false when the file does not exist.
func readOAuthFile(path string, creds *models.Credentials) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from the collection root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var fields struct {
		APIKey       string `json:"api_key"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiryDate   int64  `json:"expiry_date"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fields.APIKey != "" {
		creds.APIKey = fields.APIKey
	}
	creds.AccessToken = fields.AccessToken
	creds.RefreshToken = fields.RefreshToken
	creds.ExpiryDate = fields.ExpiryDate
	creds.OAuthPath = path
	creds.Extra = raw
	return true, nil
}

// persistToken rewrites access_token and expiry_date in the OAuth file,
// keeping every other field.
func persistToken(creds *models.Credentials) error {
	if creds.OAuthPath == "" {
		return nil
	}

	out := make(map[string]json.RawMessage, len(creds.Extra)+2)
	for k, v := range creds.Extra {
		out[k] = v
	}

	token, err := json.Marshal(creds.AccessToken)
	if err != nil {
		return err
	}
	expiry, err := json.Marshal(creds.ExpiryDate)
	if err != nil {
		return err
	}
	out["access_token"] = token
	out["expiry_date"] = expiry

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmpFile := creds.OAuthPath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, creds.OAuthPath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
