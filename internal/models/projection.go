package models

import "time"

// ProjectionStatus indicates urgency level for quota depletion.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// Projection estimates when a profile's tier family runs out at its current
// consumption rate.
type Projection struct {
	SessionStart   time.Time        `json:"sessionStart"`
	DepleteAt      *time.Time       `json:"depleteAt"`
	HoursLeft      *float64         `json:"hoursLeft"`
	ProfileID      string           `json:"profileId"`
	Family         string           `json:"family"`
	Status         ProjectionStatus `json:"status"`
	Confidence     string           `json:"confidence"` // "low", "medium", "high"
	CurrentPercent float64          `json:"currentPercent"`
	RatePerHour    float64          `json:"ratePerHour"` // remaining % consumed per hour
	DataPoints     int              `json:"dataPoints"`
}
