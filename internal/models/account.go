// Package models defines data structures and domain types.
package models

import (
	"encoding/json"
	"time"
)

// Account is one credential profile discovered on disk during a scan.
// It is rebuilt on every cycle and never persisted.
type Account struct {
	ProfileID string `json:"projectId"`
	Email     string `json:"email,omitempty"`
	Dir       string `json:"-"`
	IsCurrent bool   `json:"isCurrent"`
}

// Credentials holds whatever auth material was found for a profile: a static
// API key, an OAuth token set, or both.
type Credentials struct {
	// Extra keeps unknown fields from oauth_creds.json so a rewrite of the
	// file does not drop them.
	Extra          map[string]json.RawMessage `json:"-"`
	APIKey         string                     `json:"api_key,omitempty"`
	AccessToken    string                     `json:"access_token,omitempty"`
	RefreshToken   string                     `json:"refresh_token,omitempty"`
	OAuthPath      string                     `json:"-"`
	ExpiryDate     int64                      `json:"expiry_date,omitempty"`
	TokenRefreshed bool                       `json:"-"`
}

// HasOAuth reports whether an access token is available.
func (c *Credentials) HasOAuth() bool {
	return c != nil && c.AccessToken != ""
}

// Expiry returns the expiry date as a time.Time, zero if unset.
func (c *Credentials) Expiry() time.Time {
	if c == nil || c.ExpiryDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.ExpiryDate)
}

// NeedsRefresh reports whether the OAuth token is expired and refreshable.
func (c *Credentials) NeedsRefresh(now time.Time) bool {
	if c == nil || c.RefreshToken == "" || c.ExpiryDate == 0 {
		return false
	}
	return now.UnixMilli() >= c.ExpiryDate
}
