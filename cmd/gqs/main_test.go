package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/db"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
	"github.com/j-veylop/gemini-quota-switch/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "switch", "top", "history", "switches", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if strings.TrimSpace(out) != version.Info() {
		t.Errorf("output = %q, want %q", out, version.Info())
	}
}

func TestHistoryCommand_Validation(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr string
	}{
		{[]string{"history"}, "accepts 1 arg"},
		{[]string{"history", "a", "--days", "0"}, "--days must be between 1 and 30"},
		{[]string{"history", "a", "--days", "31"}, "--days must be between 1 and 30"},
		{[]string{"switches", "--limit", "0"}, "--limit must be at least 1"},
	}

	for _, tt := range tests {
		_, err := execute(t, tt.args...)
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%v: error = %v, want %q", tt.args, err, tt.wantErr)
		}
	}
}

func TestHistoryCommand_LocalDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("COLLECTION_DIR", dir)

	store, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("db.New() failed: %v", err)
	}
	if err := store.InsertSwitchEvent(&models.SwitchEvent{Timestamp: time.Now(), FromProfile: "a", ToProfile: "b", Switched: true}); err != nil {
		t.Fatalf("InsertSwitchEvent() failed: %v", err)
	}
	_ = store.Close()

	out, err := execute(t, "history", "a")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No data available") || !strings.Contains(out, "not enough data") {
		t.Errorf("history output = %q", out)
	}

	out, err = execute(t, "switches")
	if err != nil {
		t.Fatalf("switches failed: %v", err)
	}
	if !strings.Contains(out, "FROM") || !strings.Contains(out, "true") {
		t.Errorf("switches output = %q", out)
	}
}

func TestOpenDatabase(t *testing.T) {
	if _, err := openDatabase(""); err != errHistoryDisabled {
		t.Errorf("openDatabase(\"\") error = %v, want errHistoryDisabled", err)
	}
	if _, err := openDatabase(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("openDatabase() should fail for a missing file")
	}
}

func TestServerURL(t *testing.T) {
	got, err := serverURL("http://example.test:9000")
	if err != nil || got != "http://example.test:9000" {
		t.Errorf("serverURL() = %q, %v", got, err)
	}

	t.Setenv("PORT", "4321")
	t.Setenv("DATABASE_PATH", "")
	got, err = serverURL("")
	if err != nil || got != "http://localhost:4321" {
		t.Errorf("serverURL(\"\") = %q, %v", got, err)
	}
}
