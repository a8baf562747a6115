// Package models defines data structures and domain types.
package models

import "time"

// HistoryPoint is one recorded remaining percentage of a tier family.
type HistoryPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	CycleID          string    `json:"cycleId"`
	Family           string    `json:"family"`
	RemainingPercent float64   `json:"remainingPercent"`
	IsCurrent        bool      `json:"isCurrent"`
}

// SwitchEvent records one try-switch outcome.
type SwitchEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	FromProfile string    `json:"from,omitempty"`
	ToProfile   string    `json:"to"`
	Error       string    `json:"error,omitempty"`
	ID          int64     `json:"id"`
	Switched    bool      `json:"switched"`
}

// SwitchResult is what a switch attempt reports back to callers.
type SwitchResult struct {
	ProfileID string `json:"profileId"`
	Switched  bool   `json:"switched"`
}
