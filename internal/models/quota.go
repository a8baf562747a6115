// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Snapshot status values.
const (
	StatusOK            = "ok"
	StatusAuthenticated = "authenticated"
	StatusUnknown       = "unknown"
)

// TopTier is the tier family whose remaining quota drives profile preference.
const TopTier = "Pro"

// ModelQuota is the quota state of one tier family.
type ModelQuota struct {
	Used             string  `json:"used"`
	Remaining        string  `json:"remaining"`
	ResetsIn         string  `json:"resets_in"`
	UsedPercent      float64 `json:"used_percent"`
	RemainingPercent float64 `json:"remaining_percent"`
	LowThreshold     bool    `json:"low_threshold"`
}

// NewModelQuota derives a ModelQuota from a remaining fraction in [0,1].
func NewModelQuota(remainingFraction float64, resetsIn string, threshold float64) ModelQuota {
	used := math.Round((1-remainingFraction)*1000) / 10
	remaining := math.Round(remainingFraction*1000) / 10
	return ModelQuota{
		Used:             formatPercent(used),
		Remaining:        formatPercent(remaining),
		ResetsIn:         resetsIn,
		UsedPercent:      used,
		RemainingPercent: remaining,
		LowThreshold:     remaining < threshold,
	}
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%s%%", strconv.FormatFloat(v, 'f', -1, 64))
}

// AccountSnapshot is one profile's poll result.
type AccountSnapshot struct {
	Models         map[string]ModelQuota `json:"models,omitempty"`
	IsCurrentLow   *bool                 `json:"isCurrentLow,omitempty"`
	ProjectID      string                `json:"projectId"`
	Email          string                `json:"email,omitempty"`
	Status         string                `json:"status"`
	Auth           string                `json:"auth,omitempty"`
	Tier           string                `json:"tier,omitempty"`
	Error          string                `json:"error,omitempty"`
	Hint           string                `json:"hint,omitempty"`
	TokenStatus    string                `json:"token_status,omitempty"`
	HintRefresh    string                `json:"hint_refresh,omitempty"`
	IsCurrent      bool                  `json:"isCurrent"`
	TokenRefreshed bool                  `json:"token_refreshed,omitempty"`
}

// TopTierRemaining returns the top tier remaining percentage, if known.
func (s *AccountSnapshot) TopTierRemaining() (float64, bool) {
	if s == nil || s.Models == nil {
		return 0, false
	}
	q, ok := s.Models[TopTier]
	if !ok {
		return 0, false
	}
	return q.RemainingPercent, true
}

// AggregateSnapshot is the immutable result of one full refresh cycle.
// Once published it must not be mutated.
type AggregateSnapshot struct {
	CompletedAt      time.Time         `json:"-"`
	Prefer           *string           `json:"prefer"`
	CycleID          string            `json:"-"`
	CurrentProfileID string            `json:"-"`
	Metrics          []AccountSnapshot `json:"metrics"`
}

// Find returns the snapshot for a profile.
func (a *AggregateSnapshot) Find(profileID string) (AccountSnapshot, bool) {
	if a == nil {
		return AccountSnapshot{}, false
	}
	for _, m := range a.Metrics {
		if m.ProjectID == profileID {
			return m, true
		}
	}
	return AccountSnapshot{}, false
}

// CurrentFromMetrics returns the profile flagged as current in the metrics.
func (a *AggregateSnapshot) CurrentFromMetrics() (string, bool) {
	if a == nil {
		return "", false
	}
	for _, m := range a.Metrics {
		if m.IsCurrent {
			return m.ProjectID, true
		}
	}
	return "", false
}
