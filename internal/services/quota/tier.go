package quota

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownModel is returned when a quota bucket names a model that belongs
// to no tier family.
var ErrUnknownModel = errors.New("model not in any tier family")

// DefaultTiers maps each tier family to the model ids sharing its quota.
var DefaultTiers = map[string][]string{
	"3-Flash": {"gemini-3-flash-preview"},
	"Flash":   {"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.0-flash"},
	"Pro":     {"gemini-2.5-pro", "gemini-3-pro-preview"},
}

// TierTable resolves model ids to tier families.
type TierTable struct {
	byModel map[string]string
}

// NewTierTable builds the inverse model → family index. A model listed under
// two families is rejected.
func NewTierTable(families map[string][]string) (*TierTable, error) {
	byModel := make(map[string]string)
	for family, modelIDs := range families {
		for _, id := range modelIDs {
			if other, dup := byModel[id]; dup && other != family {
				return nil, fmt.Errorf("model %q listed in both %q and %q", id, other, family)
			}
			byModel[id] = family
		}
	}
	return &TierTable{byModel: byModel}, nil
}

// DefaultTierTable returns the table built from DefaultTiers.
func DefaultTierTable() *TierTable {
	t, err := NewTierTable(DefaultTiers)
	if err != nil {
		panic(err)
	}
	return t
}

// Family returns the tier family of a model id.
func (t *TierTable) Family(modelID string) (string, error) {
	family, ok := t.byModel[modelID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	return family, nil
}

// FormatResetTime renders an ISO-8601 reset time relative to now:
// "N/A" when absent, "Now" when past, otherwise "2h 5m" or "5m".
func FormatResetTime(raw string, now time.Time) string {
	if raw == "" {
		return "N/A"
	}

	resetTime, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if len(raw) > 19 {
			return raw[:19]
		}
		return raw
	}

	delta := resetTime.Sub(now)
	if delta < 0 {
		return "Now"
	}

	hours := int(delta / time.Hour)
	minutes := int((delta % time.Hour) / time.Minute)

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
