package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
	"github.com/j-veylop/gemini-quota-switch/internal/services"
	"github.com/j-veylop/gemini-quota-switch/internal/services/profiles"
)

type fakeBackend struct {
	snapshot    *models.AggregateSnapshot
	lastUpdated time.Time
	switchRes   models.SwitchResult
	switchErr   error
	historyErr  error
	history     []models.HistoryPoint
	switches    []models.SwitchEvent
	gotSince    time.Time
	gotFamily   string
	gotLimit    int
	refreshOK   bool
}

func (f *fakeBackend) Snapshot() *models.AggregateSnapshot { return f.snapshot }

func (f *fakeBackend) LastUpdated() (time.Time, bool) {
	return f.lastUpdated, !f.lastUpdated.IsZero()
}

func (f *fakeBackend) TrySwitch(context.Context) (models.SwitchResult, error) {
	return f.switchRes, f.switchErr
}

func (f *fakeBackend) Refresh() bool { return f.refreshOK }

func (f *fakeBackend) History(_, family string, since time.Time) ([]models.HistoryPoint, error) {
	f.gotFamily, f.gotSince = family, since
	return f.history, f.historyErr
}

func (f *fakeBackend) Switches(limit int) ([]models.SwitchEvent, error) {
	f.gotLimit = limit
	return f.switches, f.historyErr
}

func (f *fakeBackend) Threshold() float64 { return 10 }

func ptr[T any](v T) *T { return &v }

func serve(t *testing.T, b Backend, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	New(b, ":0", "").Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStats_BeforeFirstCycle(t *testing.T) {
	rec := serve(t, &fakeBackend{}, http.MethodGet, "/api/stats")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(body["metrics"]) != "[]" || string(body["prefer"]) != "null" || string(body["lastUpdatedTime"]) != "null" {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStats(t *testing.T) {
	updated := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &fakeBackend{
		// a later cycle's time must not leak into this snapshot's reply
		lastUpdated: updated.Add(time.Minute),
		snapshot: &models.AggregateSnapshot{
			CompletedAt: updated,
			Prefer:      ptr("b"),
			Metrics: []models.AccountSnapshot{
				{ProjectID: "a", IsCurrent: true, Status: models.StatusOK, IsCurrentLow: ptr(true),
					Models: map[string]models.ModelQuota{"Pro": models.NewModelQuota(0.05, "Now", 10)}},
				{ProjectID: "b", Status: models.StatusOK},
			},
		},
	}

	rec := serve(t, b, http.MethodGet, "/api/stats")
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Prefer == nil || *resp.Prefer != "b" || len(resp.Metrics) != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.LastUpdatedTime == nil || *resp.LastUpdatedTime != "2025-01-01T12:00:00.000Z" {
		t.Errorf("lastUpdatedTime = %v", resp.LastUpdatedTime)
	}
	if got, ok := resp.LastUpdated(); !ok || !got.Equal(updated) {
		t.Errorf("LastUpdated() = %v, %v", got, ok)
	}
	if !strings.Contains(rec.Body.String(), `"isCurrentLow":true`) || !strings.Contains(rec.Body.String(), `"remaining":"5%"`) {
		t.Errorf("body missing snapshot fields: %s", rec.Body.String())
	}
}

func TestStats_TimestampFromSnapshot(t *testing.T) {
	completed := time.Date(2025, 2, 3, 4, 5, 6, 789000000, time.UTC)
	b := &fakeBackend{snapshot: &models.AggregateSnapshot{
		CompletedAt: completed,
		Metrics:     []models.AccountSnapshot{{ProjectID: "a"}},
	}}

	var resp StatsResponse
	if err := json.Unmarshal(serve(t, b, http.MethodGet, "/api/stats").Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Metrics) != 1 || resp.LastUpdatedTime == nil || *resp.LastUpdatedTime != "2025-02-03T04:05:06.789Z" {
		t.Errorf("resp = %+v, want metrics with their own timestamp", resp)
	}
}

func TestTrySwitch(t *testing.T) {
	tests := []struct {
		name       string
		result     models.SwitchResult
		err        error
		wantStatus int
		wantBody   string
	}{
		{"Switched", models.SwitchResult{ProfileID: "b", Switched: true}, nil, http.StatusOK, "1|b"},
		{"NoPreference", models.SwitchResult{ProfileID: "a"}, nil, http.StatusOK, "0|a"},
		{"NoCurrent", models.SwitchResult{}, profiles.ErrNoCurrentProfile, http.StatusNotFound, noCurrentMessage},
		{"FilesystemFailure", models.SwitchResult{}, fmt.Errorf("failed to switch: %w", os.ErrPermission), http.StatusInternalServerError, switchFailedMessage},
		{"MissingProfile", models.SwitchResult{}, fmt.Errorf("wrap: %w", profiles.ErrProfileNotFound), http.StatusInternalServerError, switchFailedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &fakeBackend{switchRes: tt.result, switchErr: tt.err}, http.MethodPut, "/api/try-switch")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestTrySwitch_WrongMethod(t *testing.T) {
	rec := serve(t, &fakeBackend{}, http.MethodGet, "/api/try-switch")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRefresh(t *testing.T) {
	if rec := serve(t, &fakeBackend{refreshOK: true}, http.MethodPost, "/api/refresh"); rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if rec := serve(t, &fakeBackend{}, http.MethodPost, "/api/refresh"); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &fakeBackend{history: []models.HistoryPoint{
		{Timestamp: base, Family: "Pro", RemainingPercent: 90},
		{Timestamp: base.Add(time.Minute), Family: "Pro", RemainingPercent: 60},
	}}

	rec := serve(t, b, http.MethodGet, "/api/history/a?days=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var points []models.HistoryPoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(points) != 2 || b.gotFamily != models.TopTier {
		t.Errorf("points = %+v, family = %q", points, b.gotFamily)
	}
	if d := time.Since(b.gotSince); d < 7*24*time.Hour-time.Minute || d > 7*24*time.Hour+time.Minute {
		t.Errorf("since = %v, want about 7 days ago", b.gotSince)
	}

	rec = serve(t, b, http.MethodGet, "/api/history/a?format=chart&family=Flash")
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("chart Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "a Flash remaining") {
		t.Errorf("chart body = %q", rec.Body.String())
	}
}

func TestHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		backend    *fakeBackend
		target     string
		wantStatus int
	}{
		{"BadDays", &fakeBackend{}, "/api/history/a?days=x", http.StatusBadRequest},
		{"DaysOutOfRange", &fakeBackend{}, "/api/history/a?days=365", http.StatusBadRequest},
		{"BadWidth", &fakeBackend{}, "/api/history/a?format=chart&width=5", http.StatusBadRequest},
		{"Disabled", &fakeBackend{historyErr: services.ErrHistoryDisabled}, "/api/history/a", http.StatusServiceUnavailable},
		{"QueryFailed", &fakeBackend{historyErr: errors.New("disk I/O error")}, "/api/history/a", http.StatusInternalServerError},
		{"EmptyIsArray", &fakeBackend{}, "/api/history/a", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.backend, http.MethodGet, tt.target)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && strings.TrimSpace(rec.Body.String()) != "[]" {
				t.Errorf("body = %q, want []", rec.Body.String())
			}
		})
	}
}

func TestProjection(t *testing.T) {
	now := time.Now()
	b := &fakeBackend{history: []models.HistoryPoint{
		{Timestamp: now.Add(-time.Hour), Family: "Pro", RemainingPercent: 90},
		{Timestamp: now, Family: "Pro", RemainingPercent: 60},
	}}

	rec := serve(t, b, http.MethodGet, "/api/projection/a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var p models.Projection
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.ProfileID != "a" || p.Family != models.TopTier || p.Status != models.ProjectionWarning {
		t.Errorf("projection = %+v", p)
	}
	if p.RatePerHour != 30 || p.HoursLeft == nil {
		t.Errorf("rate = %v hoursLeft = %v", p.RatePerHour, p.HoursLeft)
	}
	if d := time.Since(b.gotSince); d < 23*time.Hour || d > 25*time.Hour {
		t.Errorf("since = %v, want about a day ago", b.gotSince)
	}

	rec = serve(t, &fakeBackend{historyErr: services.ErrHistoryDisabled}, http.MethodGet, "/api/projection/a?family=Flash")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d", rec.Code)
	}
}

func TestSwitches(t *testing.T) {
	b := &fakeBackend{switches: []models.SwitchEvent{{ID: 1, ToProfile: "b", Switched: true}}}

	rec := serve(t, b, http.MethodGet, "/api/switches")
	if rec.Code != http.StatusOK || b.gotLimit != defaultSwitchLimit {
		t.Errorf("status = %d, limit = %d", rec.Code, b.gotLimit)
	}

	serve(t, b, http.MethodGet, "/api/switches?limit=5")
	if b.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", b.gotLimit)
	}

	if rec := serve(t, b, http.MethodGet, "/api/switches?limit=0"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeBackend{}, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>quota</h1>"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rec := httptest.NewRecorder()
	New(&fakeBackend{}, ":0", dir).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "quota") {
		t.Errorf("static = %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(t, &fakeBackend{}, http.MethodGet, "/index.html")
	if rec.Code != http.StatusNotFound {
		t.Errorf("static disabled status = %d, want 404", rec.Code)
	}
}

func TestServe_Shutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&fakeBackend{}, "", "").Serve(ctx, listener) }()

	client := NewClient("http://" + listener.Addr().String())
	if _, err := client.Stats(context.Background()); err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
