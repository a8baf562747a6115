package db

import "time"

const (
	// timestampFormat is how every timestamp column is stored, always in UTC.
	timestampFormat = "2006-01-02 15:04:05"

	// DefaultRetention is how long history rows are kept.
	DefaultRetention = 30 * 24 * time.Hour
)
