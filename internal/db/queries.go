package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

var timeFormats = []string{
	timestampFormat,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampFormat)
}

// InsertCycle records one row per profile and tier family of a published
// snapshot. Profiles without quota data get a single row with an empty family
// so their status and error are kept.
func (db *DB) InsertCycle(snap *models.AggregateSnapshot) error {
	if snap == nil || len(snap.Metrics) == 0 {
		return nil
	}

	query := `
		INSERT INTO quota_snapshots (
			cycle_id, profile_id, email, family, remaining_percent,
			is_current, status, error, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	timestamp := formatTime(snap.CompletedAt)
	for _, m := range snap.Metrics {
		families := lo.Keys(m.Models)
		sort.Strings(families)

		if len(families) == 0 {
			if _, err := stmt.ExecContext(ctx,
				snap.CycleID, m.ProjectID, nullString(m.Email), "", nil,
				m.IsCurrent, m.Status, nullString(m.Error), timestamp,
			); err != nil {
				return fmt.Errorf("failed to insert quota snapshot: %w", err)
			}
			continue
		}

		for _, family := range families {
			if _, err := stmt.ExecContext(ctx,
				snap.CycleID, m.ProjectID, nullString(m.Email), family, m.Models[family].RemainingPercent,
				m.IsCurrent, m.Status, nullString(m.Error), timestamp,
			); err != nil {
				return fmt.Errorf("failed to insert quota snapshot: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}
	return nil
}

// GetProfileHistory returns a profile's remaining percentages for one tier
// family since a point in time, oldest first.
func (db *DB) GetProfileHistory(profileID, family string, since time.Time) ([]models.HistoryPoint, error) {
	query := `
		SELECT timestamp, cycle_id, family, remaining_percent, is_current
		FROM quota_snapshots
		WHERE profile_id = ? AND family = ? AND timestamp >= ? AND remaining_percent IS NOT NULL
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := db.QueryContext(context.Background(), query, profileID, family, since.UTC().Format(timestampFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to query profile history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []models.HistoryPoint
	for rows.Next() {
		var p models.HistoryPoint
		var ts string

		if err := rows.Scan(&ts, &p.CycleID, &p.Family, &p.RemainingPercent, &p.IsCurrent); err != nil {
			return nil, fmt.Errorf("failed to scan history point: %w", err)
		}
		if t, ok := parseTimeString(ts); ok {
			p.Timestamp = t
		} else {
			logger.Debug("Unparsable history timestamp", "value", ts)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// InsertSwitchEvent records a switch attempt.
func (db *DB) InsertSwitchEvent(event *models.SwitchEvent) error {
	query := `
		INSERT INTO switch_events (from_profile, to_profile, switched, error, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(context.Background(), query,
		nullString(event.FromProfile),
		event.ToProfile,
		event.Switched,
		nullString(event.Error),
		formatTime(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert switch event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		event.ID = id
	}

	return nil
}

// GetRecentSwitches returns the most recent switch events, newest first.
func (db *DB) GetRecentSwitches(limit int) ([]models.SwitchEvent, error) {
	query := `
		SELECT id, from_profile, to_profile, switched, error, timestamp
		FROM switch_events
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(context.Background(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query switch events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.SwitchEvent
	for rows.Next() {
		var e models.SwitchEvent
		var from, errStr sql.NullString
		var ts string

		if err := rows.Scan(&e.ID, &from, &e.ToProfile, &e.Switched, &errStr, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan switch event: %w", err)
		}
		e.FromProfile = from.String
		e.Error = errStr.String
		if t, ok := parseTimeString(ts); ok {
			e.Timestamp = t
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// PruneBefore deletes history and switch rows older than cutoff.
func (db *DB) PruneBefore(cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(timestampFormat)

	var total int64
	for _, table := range []string{"quota_snapshots", "switch_events"} {
		result, err := db.ExecContext(context.Background(), "DELETE FROM "+table+" WHERE timestamp < ?", ts) // #nosec G202 -- fixed table names
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err == nil {
			total += n
		}
	}
	return total, nil
}

// nullString returns a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
