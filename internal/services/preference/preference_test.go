package preference

import (
	"testing"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

func snap(id string, proRemaining float64) models.AccountSnapshot {
	return models.AccountSnapshot{
		ProjectID: id,
		Models: map[string]models.ModelQuota{
			models.TopTier: models.NewModelQuota(proRemaining/100, "N/A", 10),
		},
	}
}

func noPro(id string) models.AccountSnapshot {
	return models.AccountSnapshot{
		ProjectID: id,
		Models: map[string]models.ModelQuota{
			"Flash": models.NewModelQuota(0.9, "N/A", 10),
		},
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		snapshots []models.AccountSnapshot
		currentID string
		want      string // "" means nil
	}{
		{
			name:      "CurrentLowPicksBestAlternative",
			snapshots: []models.AccountSnapshot{snap("A", 5), snap("B", 40), snap("C", 60)},
			currentID: "A",
			want:      "C",
		},
		{
			name:      "NoCurrentPicksGlobalBest",
			snapshots: []models.AccountSnapshot{snap("A", 5), snap("B", 40)},
			currentID: "",
			want:      "B",
		},
		{
			name:      "CurrentHealthyNoSwitch",
			snapshots: []models.AccountSnapshot{snap("A", 50), snap("B", 90)},
			currentID: "A",
			want:      "",
		},
		{
			name:      "CurrentAtThresholdNoSwitch",
			snapshots: []models.AccountSnapshot{snap("A", 10), snap("B", 90)},
			currentID: "A",
			want:      "",
		},
		{
			name:      "CurrentLowNoQualifyingAlternative",
			snapshots: []models.AccountSnapshot{snap("A", 5), snap("B", 9.9), snap("C", 2)},
			currentID: "A",
			want:      "",
		},
		{
			name:      "AlternativeAtThresholdQualifies",
			snapshots: []models.AccountSnapshot{snap("A", 5), snap("B", 10)},
			currentID: "A",
			want:      "B",
		},
		{
			name:      "CurrentLowIgnoresAlternativesWithoutPro",
			snapshots: []models.AccountSnapshot{snap("A", 5), noPro("B"), snap("C", 20)},
			currentID: "A",
			want:      "C",
		},
		{
			name:      "TieFirstInScanOrder",
			snapshots: []models.AccountSnapshot{snap("A", 1), snap("B", 70), snap("C", 70)},
			currentID: "A",
			want:      "B",
		},
		{
			name:      "CurrentMissingFromSnapshots",
			snapshots: []models.AccountSnapshot{snap("B", 3), snap("C", 7)},
			currentID: "A",
			want:      "C",
		},
		{
			name:      "CurrentWithoutProIsUndetermined",
			snapshots: []models.AccountSnapshot{noPro("A"), snap("B", 3), snap("C", 7)},
			currentID: "A",
			want:      "C",
		},
		{
			name:      "UndeterminedMayPickCurrent",
			snapshots: []models.AccountSnapshot{noPro("X"), snap("A", 80), snap("B", 30)},
			currentID: "",
			want:      "A",
		},
		{
			name:      "UndeterminedAllZeroPicksFirst",
			snapshots: []models.AccountSnapshot{snap("A", 0), snap("B", 0)},
			currentID: "",
			want:      "A",
		},
		{
			name:      "NoQuotaData",
			snapshots: []models.AccountSnapshot{noPro("A"), {ProjectID: "B"}},
			currentID: "",
			want:      "",
		},
		{
			name:      "Empty",
			snapshots: nil,
			currentID: "A",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.snapshots, tt.currentID, 10)
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("Compute() = %q, want nil", *got)
			case tt.want != "" && got == nil:
				t.Errorf("Compute() = nil, want %q", tt.want)
			case tt.want != "" && *got != tt.want:
				t.Errorf("Compute() = %q, want %q", *got, tt.want)
			}
		})
	}
}

// A depleted current profile is never replaced by another depleted profile
// when a healthy one exists.
func TestCompute_NeverPrefersBelowThreshold(t *testing.T) {
	for current := 0; current < 10; current++ {
		for alt := 0; alt <= 100; alt += 5 {
			snaps := []models.AccountSnapshot{
				snap("cur", float64(current)),
				snap("low", float64(alt%10)),
				snap("alt", float64(alt)),
				snap("ok", 10),
			}
			got := Compute(snaps, "cur", 10)
			if got == nil {
				t.Fatalf("current=%d alt=%d: got nil, want a profile", current, alt)
			}
			for _, s := range snaps {
				if s.ProjectID == *got {
					if r, _ := s.TopTierRemaining(); r < 10 {
						t.Errorf("current=%d alt=%d: preferred %s with %.1f%%", current, alt, *got, r)
					}
				}
			}
		}
	}
}
