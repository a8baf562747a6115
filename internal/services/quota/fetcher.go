package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// Auth kinds and hints reported on snapshots.
const (
	AuthOAuth        = "OAuth (Google Account)"
	AuthAPIKey       = "API Key"
	HintAPIKey       = "API key doesn't support quota API. Check https://aistudio.google.com"
	HintRefreshToken = "Run 'gemini' to refresh token"
	TokenExpired     = "expired"
)

// Fetcher turns resolved credentials into a quota snapshot.
type Fetcher struct {
	client    *Client
	tiers     *TierTable
	now       func() time.Time
	threshold float64
}

// NewFetcher creates a Fetcher. A nil tier table uses DefaultTierTable.
func NewFetcher(client *Client, tiers *TierTable, threshold float64) *Fetcher {
	if tiers == nil {
		tiers = DefaultTierTable()
	}
	return &Fetcher{client: client, tiers: tiers, threshold: threshold, now: time.Now}
}

// FetchUsage queries quota for one profile. Every failure is folded into the
// returned snapshot.
func (f *Fetcher) FetchUsage(ctx context.Context, creds *models.Credentials, profileDir, fallbackProjectID string) models.AccountSnapshot {
	snap := models.AccountSnapshot{ProjectID: fallbackProjectID}

	if creds == nil {
		snap.Error = "No credentials found"
		snap.Hint = "No credentials in " + profileDir
		snap.Status = models.StatusUnknown
		return snap
	}

	snap.TokenRefreshed = creds.TokenRefreshed

	switch {
	case creds.HasOAuth():
		f.fetchOAuth(ctx, creds.AccessToken, fallbackProjectID, &snap)
	case creds.APIKey != "":
		snap.Auth = AuthAPIKey
		snap.Hint = HintAPIKey
	}

	if snap.Status == "" {
		if snap.Auth != "" {
			snap.Status = models.StatusAuthenticated
		} else {
			snap.Status = models.StatusUnknown
		}
	}
	return snap
}

func (f *Fetcher) fetchOAuth(ctx context.Context, accessToken, fallbackProjectID string, snap *models.AccountSnapshot) {
	quotas, err := f.fetchModels(ctx, accessToken, fallbackProjectID, snap)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			snap.TokenStatus = TokenExpired
			snap.HintRefresh = HintRefreshToken
			return
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			snap.Error = fmt.Sprintf("API error (%d)", apiErr.StatusCode)
		} else {
			snap.Error = "API error (unknown)"
		}
		snap.Hint = err.Error()
		return
	}
	snap.Models = quotas
}

func (f *Fetcher) fetchModels(ctx context.Context, accessToken, fallbackProjectID string, snap *models.AccountSnapshot) (map[string]models.ModelQuota, error) {
	assist, err := f.client.LoadCodeAssist(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	snap.Auth = AuthOAuth
	snap.Status = models.StatusOK
	snap.Tier = assist.TierName()

	project := assist.CloudAICompanionProject
	if project == "" {
		project = fallbackProjectID
	}
	if project == "" {
		return nil, nil
	}

	resp, err := f.client.RetrieveUserQuota(ctx, accessToken, project)
	if err != nil {
		return nil, err
	}
	if resp.Buckets == nil {
		return nil, nil
	}

	now := f.now()
	result := make(map[string]models.ModelQuota, len(resp.Buckets))
	for _, bucket := range resp.Buckets {
		family, err := f.tiers.Family(bucket.ModelID)
		if err != nil {
			return nil, err
		}
		// Several buckets of one family: the last one wins.
		result[family] = models.NewModelQuota(bucket.Remaining(), FormatResetTime(bucket.ResetTime, now), f.threshold)
	}
	return result, nil
}
