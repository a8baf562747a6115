package db

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

func cycleAt(id string, at time.Time, currentPro, otherPro float64) *models.AggregateSnapshot {
	return &models.AggregateSnapshot{
		CycleID:     id,
		CompletedAt: at,
		Metrics: []models.AccountSnapshot{
			{
				ProjectID: "a",
				Email:     "a@example.com",
				IsCurrent: true,
				Status:    models.StatusOK,
				Models: map[string]models.ModelQuota{
					"Pro":   models.NewModelQuota(currentPro, "N/A", 10),
					"Flash": models.NewModelQuota(0.9, "N/A", 10),
				},
			},
			{
				ProjectID: "b",
				Status:    models.StatusOK,
				Models: map[string]models.ModelQuota{
					"Pro": models.NewModelQuota(otherPro, "N/A", 10),
				},
			},
			{
				ProjectID: "c",
				Status:    models.StatusUnknown,
				Error:     "No credentials found",
			},
		},
	}
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}

func TestInsertCycle(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := db.InsertCycle(cycleAt("c1", base, 0.5, 0.8)); err != nil {
		t.Fatalf("InsertCycle() failed: %v", err)
	}

	// a: Pro + Flash, b: Pro, c: one status row.
	if got := countRows(t, db, "quota_snapshots"); got != 4 {
		t.Errorf("rows = %d, want 4", got)
	}

	var status, errStr string
	err := db.QueryRowContext(context.Background(),
		"SELECT status, error FROM quota_snapshots WHERE profile_id = 'c'").Scan(&status, &errStr)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if status != models.StatusUnknown || errStr != "No credentials found" {
		t.Errorf("c row = %q, %q", status, errStr)
	}
}

func TestInsertCycle_Empty(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if err := db.InsertCycle(nil); err != nil {
		t.Errorf("InsertCycle(nil) error = %v", err)
	}
	if err := db.InsertCycle(&models.AggregateSnapshot{CycleID: "x"}); err != nil {
		t.Errorf("InsertCycle(empty) error = %v", err)
	}
	if got := countRows(t, db, "quota_snapshots"); got != 0 {
		t.Errorf("rows = %d, want 0", got)
	}
}

func TestGetProfileHistory(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, frac := range []float64{0.9, 0.7, 0.4} {
		at := base.Add(time.Duration(i) * time.Minute)
		if err := db.InsertCycle(cycleAt("c"+string(rune('1'+i)), at, frac, 0.8)); err != nil {
			t.Fatalf("InsertCycle() failed: %v", err)
		}
	}

	points, err := db.GetProfileHistory("a", "Pro", base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("GetProfileHistory() failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].RemainingPercent != 70 || points[1].RemainingPercent != 40 {
		t.Errorf("points = %+v", points)
	}
	if !points[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("Timestamp = %v", points[0].Timestamp)
	}
	if points[0].CycleID != "c2" || points[0].Family != "Pro" || !points[0].IsCurrent {
		t.Errorf("point = %+v", points[0])
	}

	// Status-only rows are not history points.
	points, err = db.GetProfileHistory("c", "", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetProfileHistory() failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("got %d points for profile without quota, want 0", len(points))
	}
}

func TestGetProfileHistory_Unknown(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	points, err := db.GetProfileHistory("nobody", "Pro", time.Time{})
	if err != nil {
		t.Fatalf("GetProfileHistory() failed: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("points = %v, want none", points)
	}
}

func TestSwitchEvents(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []*models.SwitchEvent{
		{Timestamp: base, FromProfile: "a", ToProfile: "b", Switched: true},
		{Timestamp: base.Add(time.Minute), ToProfile: "c", Error: "permission denied"},
		{Timestamp: base.Add(2 * time.Minute), FromProfile: "b", ToProfile: "a", Switched: true},
	}
	for _, e := range events {
		if err := db.InsertSwitchEvent(e); err != nil {
			t.Fatalf("InsertSwitchEvent() failed: %v", err)
		}
		if e.ID == 0 {
			t.Error("ID should be set after insert")
		}
	}

	got, err := db.GetRecentSwitches(2)
	if err != nil {
		t.Fatalf("GetRecentSwitches() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].ToProfile != "a" || got[0].FromProfile != "b" || !got[0].Switched {
		t.Errorf("newest = %+v", got[0])
	}
	if got[1].ToProfile != "c" || got[1].Error != "permission denied" || got[1].Switched || got[1].FromProfile != "" {
		t.Errorf("second = %+v", got[1])
	}
	if !got[1].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("Timestamp = %v", got[1].Timestamp)
	}
}

func TestPruneBefore(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := db.InsertCycle(cycleAt("old", old, 0.5, 0.5)); err != nil {
		t.Fatalf("InsertCycle() failed: %v", err)
	}
	if err := db.InsertCycle(cycleAt("new", recent, 0.5, 0.5)); err != nil {
		t.Fatalf("InsertCycle() failed: %v", err)
	}
	if err := db.InsertSwitchEvent(&models.SwitchEvent{Timestamp: old, ToProfile: "a"}); err != nil {
		t.Fatalf("InsertSwitchEvent() failed: %v", err)
	}

	n, err := db.PruneBefore(recent.Add(-DefaultRetention))
	if err != nil {
		t.Fatalf("PruneBefore() failed: %v", err)
	}
	if n != 5 {
		t.Errorf("pruned %d rows, want 5", n)
	}
	if got := countRows(t, db, "quota_snapshots"); got != 4 {
		t.Errorf("remaining rows = %d, want 4", got)
	}
	if got := countRows(t, db, "switch_events"); got != 0 {
		t.Errorf("remaining switch events = %d, want 0", got)
	}
}

func TestParseTimeString(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2025-01-01 12:00:00", true},
		{"2025-01-01T12:00:00Z", true},
		{"2025-01-01T12:00:00", true},
		{"not a time", false},
	}
	for _, tt := range tests {
		if _, ok := parseTimeString(tt.in); ok != tt.ok {
			t.Errorf("parseTimeString(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}

func TestNullString(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("x"); !ns.Valid || ns.String != "x" {
		t.Errorf("nullString(\"x\") = %+v", ns)
	}
}
