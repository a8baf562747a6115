package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/j-veylop/gemini-quota-switch/internal/db"
	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
	"github.com/j-veylop/gemini-quota-switch/internal/services"
	"github.com/j-veylop/gemini-quota-switch/internal/services/profiles"
	"github.com/j-veylop/gemini-quota-switch/internal/services/projection"
	"github.com/j-veylop/gemini-quota-switch/internal/ui/components"
	"github.com/j-veylop/gemini-quota-switch/internal/version"
)

// LastUpdatedFormat matches the ISO timestamps browsers produce.
const LastUpdatedFormat = "2006-01-02T15:04:05.000Z07:00"

const (
	defaultHistoryDays  = 1
	defaultSwitchLimit  = 20
	maxSwitchLimit      = 200
	defaultChartWidth   = 60
	defaultChartHeight  = 12
	switchFailedMessage = "Failed to switch account"
	noCurrentMessage    = "No current project could be determined."
)

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Metrics         []models.AccountSnapshot `json:"metrics"`
	Prefer          *string                  `json:"prefer"`
	LastUpdatedTime *string                  `json:"lastUpdatedTime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, ready := s.backend.LastUpdated()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.GetVersion(),
		"ready":   ready,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := StatsResponse{Metrics: []models.AccountSnapshot{}}

	// Metrics, prefer and timestamp must come from one load.
	if snap := s.backend.Snapshot(); snap != nil {
		if snap.Metrics != nil {
			resp.Metrics = snap.Metrics
		}
		resp.Prefer = snap.Prefer
		if !snap.CompletedAt.IsZero() {
			formatted := snap.CompletedAt.UTC().Format(LastUpdatedFormat)
			resp.LastUpdatedTime = &formatted
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrySwitch(w http.ResponseWriter, r *http.Request) {
	result, err := s.backend.TrySwitch(r.Context())
	switch {
	case errors.Is(err, profiles.ErrNoCurrentProfile):
		writeText(w, http.StatusNotFound, noCurrentMessage)
	case err != nil:
		logger.Error("Error switching account", "error", err)
		writeText(w, http.StatusInternalServerError, switchFailedMessage)
	default:
		writeText(w, http.StatusOK, FormatSwitchReply(result))
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if !s.backend.Refresh() {
		writeJSONError(w, http.StatusConflict, "refresh already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("profile")
	query := r.URL.Query()

	family := query.Get("family")
	if family == "" {
		family = models.TopTier
	}

	maxDays := int(db.DefaultRetention / (24 * time.Hour))
	days, err := intParam(query.Get("days"), defaultHistoryDays, 1, maxDays)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid days: %v", err))
		return
	}

	points, err := s.backend.History(profileID, family, time.Now().AddDate(0, 0, -days))
	if err != nil {
		s.historyError(w, err)
		return
	}

	if query.Get("format") == "chart" {
		width, werr := intParam(query.Get("width"), defaultChartWidth, 20, 300)
		height, herr := intParam(query.Get("height"), defaultChartHeight, 3, 100)
		if err := errors.Join(werr, herr); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		chart := components.RenderHistory(points, s.backend.Threshold(), width, height,
			components.HistoryCaption(profileID, family, points))
		writeText(w, http.StatusOK, chart+"\n")
		return
	}

	if points == nil {
		points = []models.HistoryPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("profile")
	family := r.URL.Query().Get("family")
	if family == "" {
		family = models.TopTier
	}

	now := time.Now()
	points, err := s.backend.History(profileID, family, now.Add(-projection.DefaultWindow))
	if err != nil {
		s.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection.Calculate(profileID, family, points, now))
}

func (s *Server) handleSwitches(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), defaultSwitchLimit, 1, maxSwitchLimit)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %v", err))
		return
	}

	events, err := s.backend.Switches(limit)
	if err != nil {
		s.historyError(w, err)
		return
	}
	if events == nil {
		events = []models.SwitchEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) historyError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrHistoryDisabled) {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	logger.Error("History query failed", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "history query failed")
}

// FormatSwitchReply renders a switch result as "<1|0>|<profile>".
func FormatSwitchReply(result models.SwitchResult) string {
	flag := "0"
	if result.Switched {
		flag = "1"
	}
	return flag + "|" + result.ProfileID
}

// intParam parses an optional integer query value within [lower, upper].
func intParam(raw string, def, lower, upper int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < lower || n > upper {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lower, upper)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
