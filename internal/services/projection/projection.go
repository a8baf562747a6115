// Package projection estimates quota depletion from recorded history.
package projection

import (
	"fmt"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

const (
	// A rise of more than this many points between samples is a quota reset.
	sessionJumpPercent = 5

	lowConfThreshold = 6
	medConfThreshold = 24

	criticalHours = 1
	warningHours  = 6
)

// DefaultWindow is how much history a projection looks at.
const DefaultWindow = 24 * time.Hour

// DetectSessionBoundary reports whether newPercent is a reset relative to oldPercent.
func DetectSessionBoundary(newPercent, oldPercent float64) bool {
	return newPercent > oldPercent+sessionJumpPercent
}

// CurrentSession returns the trailing points recorded since the last reset.
// points must be oldest first.
func CurrentSession(points []models.HistoryPoint) []models.HistoryPoint {
	start := 0
	for i := len(points) - 1; i > 0; i-- {
		if DetectSessionBoundary(points[i].RemainingPercent, points[i-1].RemainingPercent) {
			start = i
			break
		}
	}
	return points[start:]
}

// Calculate projects depletion of one profile's tier family at now.
func Calculate(profileID, family string, points []models.HistoryPoint, now time.Time) *models.Projection {
	proj := &models.Projection{
		ProfileID:  profileID,
		Family:     family,
		Status:     models.ProjectionUnknown,
		Confidence: confidence(0),
	}

	session := CurrentSession(points)
	if len(session) == 0 {
		return proj
	}

	first, last := session[0], session[len(session)-1]
	proj.SessionStart = first.Timestamp
	proj.CurrentPercent = last.RemainingPercent
	proj.DataPoints = len(session)
	proj.Confidence = confidence(len(session))

	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if len(session) < 2 || hours <= 0 {
		return proj
	}

	consumed := first.RemainingPercent - last.RemainingPercent
	if consumed <= 0 {
		proj.Status = models.ProjectionSafe
		return proj
	}

	proj.RatePerHour = consumed / hours
	hoursLeft := last.RemainingPercent / proj.RatePerHour
	depleteAt := last.Timestamp.Add(time.Duration(hoursLeft * float64(time.Hour)))
	if depleteAt.Before(now) {
		depleteAt = now
	}
	hoursLeft = depleteAt.Sub(now).Hours()
	proj.HoursLeft = &hoursLeft
	proj.DepleteAt = &depleteAt

	switch {
	case hoursLeft < criticalHours:
		proj.Status = models.ProjectionCritical
	case hoursLeft < warningHours:
		proj.Status = models.ProjectionWarning
	default:
		proj.Status = models.ProjectionSafe
	}

	return proj
}

func confidence(dataPoints int) string {
	switch {
	case dataPoints < lowConfThreshold:
		return "low"
	case dataPoints < medConfThreshold:
		return "medium"
	default:
		return "high"
	}
}

// Summary renders a projection as one line.
func Summary(p *models.Projection) string {
	if p == nil || p.Status == models.ProjectionUnknown {
		return "Projection: not enough data"
	}
	if p.HoursLeft == nil {
		return fmt.Sprintf("Projection: %s, not depleting (%s confidence)", p.Status, p.Confidence)
	}
	return fmt.Sprintf("Projection: %s, %.1f%%/h, empty in %s (%s confidence)",
		p.Status, p.RatePerHour, formatHours(*p.HoursLeft), p.Confidence)
}

func formatHours(h float64) string {
	d := time.Duration(h * float64(time.Hour)).Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
