// Package preference decides which profile should replace the current one.
package preference

import (
	"github.com/samber/lo"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// Compute returns the preferred profile id, or nil when no switch is needed.
//
// A current profile with top tier quota at or above threshold is kept. When it
// is below threshold the best other profile at or above threshold wins. When
// the current profile is unknown or has no top tier figure, the best profile
// overall wins regardless of threshold. Ties go to the first in scan order.
func Compute(snapshots []models.AccountSnapshot, currentID string, threshold float64) *string {
	if currentID != "" {
		current, found := lo.Find(snapshots, func(s models.AccountSnapshot) bool {
			return s.ProjectID == currentID
		})
		if found {
			if remaining, ok := current.TopTierRemaining(); ok {
				if remaining >= threshold {
					return nil
				}
				return best(snapshots, func(s models.AccountSnapshot, r float64) bool {
					return s.ProjectID != currentID && r >= threshold
				})
			}
		}
	}

	return best(snapshots, func(models.AccountSnapshot, float64) bool { return true })
}

// best returns the eligible profile with the highest top tier remaining.
func best(snapshots []models.AccountSnapshot, eligible func(models.AccountSnapshot, float64) bool) *string {
	var (
		bestID string
		found  bool
		top    float64
	)
	for i := range snapshots {
		remaining, ok := snapshots[i].TopTierRemaining()
		if !ok || !eligible(snapshots[i], remaining) {
			continue
		}
		if !found || remaining > top {
			bestID, top, found = snapshots[i].ProjectID, remaining, true
		}
	}
	if !found {
		return nil
	}
	return &bestID
}
