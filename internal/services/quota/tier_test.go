package quota

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultTierTable(t *testing.T) {
	table := DefaultTierTable()

	tests := []struct {
		model string
		want  string
	}{
		{"gemini-3-flash-preview", "3-Flash"},
		{"gemini-2.5-flash", "Flash"},
		{"gemini-2.5-flash-lite", "Flash"},
		{"gemini-2.0-flash", "Flash"},
		{"gemini-2.5-pro", "Pro"},
		{"gemini-3-pro-preview", "Pro"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := table.Family(tt.model)
			if err != nil {
				t.Fatalf("Family(%q) error: %v", tt.model, err)
			}
			if got != tt.want {
				t.Errorf("Family(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestTierTable_UnknownModel(t *testing.T) {
	_, err := DefaultTierTable().Family("gemini-1.0-ultra")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Family() error = %v, want ErrUnknownModel", err)
	}
}

func TestNewTierTable_Duplicate(t *testing.T) {
	_, err := NewTierTable(map[string][]string{
		"A": {"m1"},
		"B": {"m1"},
	})
	if err == nil {
		t.Error("NewTierTable() should reject a model listed in two families")
	}
}

func TestFormatResetTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"Empty", "", "N/A"},
		{"Past", "2025-01-01T11:00:00Z", "Now"},
		{"Minutes", "2025-01-01T12:30:00Z", "30m"},
		{"HoursAndMinutes", "2025-01-01T14:05:00Z", "2h 5m"},
		{"ExactHours", "2025-01-01T15:00:00Z", "3h 0m"},
		{"Offset", "2025-01-01T13:45:00+01:00", "45m"},
		{"Unparsable", "2025-01-01 99:99:99.000 garbage", "2025-01-01 99:99:99"},
		{"UnparsableShort", "soon", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatResetTime(tt.raw, now); got != tt.want {
				t.Errorf("FormatResetTime(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
