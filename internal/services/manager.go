// Package services wires profile scanning, quota polling, preference and
// switching into one refresh pipeline.
package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/gemini-quota-switch/internal/config"
	"github.com/j-veylop/gemini-quota-switch/internal/db"
	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
	"github.com/j-veylop/gemini-quota-switch/internal/notify"
	"github.com/j-veylop/gemini-quota-switch/internal/services/preference"
	"github.com/j-veylop/gemini-quota-switch/internal/services/profiles"
	"github.com/j-veylop/gemini-quota-switch/internal/services/quota"
	"github.com/j-veylop/gemini-quota-switch/internal/services/scheduler"
)

// ErrHistoryDisabled is returned by history queries when no database is configured.
var ErrHistoryDisabled = errors.New("history database disabled")

// Manager owns the refresh pipeline and everything it publishes to.
type Manager struct {
	baseCtx   context.Context
	scanner   *profiles.Scanner
	switcher  *profiles.Switcher
	poller    *quota.Poller
	scheduler *scheduler.Scheduler
	database  *db.DB
	watcher   *profiles.Watcher
	notifier  *notify.Notifier
	now       func() time.Time
	cfg       *config.Config
	mu        sync.Mutex
	threshold float64
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNotifier overrides the desktop notifier.
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// NewManager creates a service manager. Nothing runs until Start.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		baseCtx:   context.Background(),
		cfg:       cfg,
		now:       time.Now,
		threshold: float64(cfg.Threshold),
		scanner:   profiles.NewScanner(cfg.CollectionDir, cfg.ActiveDir),
		switcher:  profiles.NewSwitcher(cfg.CollectionDir, cfg.ActiveDir),
	}
	if cfg.Notifications {
		m.notifier = notify.New(nil)
	}
	for _, opt := range opts {
		opt(m)
	}

	if !cfg.HasOAuthClient() {
		logger.Warn("No OAuth client configured, expired tokens will not be refreshed")
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	resolver := &quota.Resolver{
		HTTPClient:    httpClient,
		APIKey:        cfg.APIKey,
		ClientID:      cfg.OAuthClientID,
		ClientSecret:  cfg.OAuthClientSecret,
		TokenEndpoint: cfg.TokenEndpoint,
	}
	fetcher := quota.NewFetcher(quota.NewClient(httpClient, cfg.CodeAssistEndpoint), nil, m.threshold)
	m.poller = quota.NewPoller(resolver, fetcher, profiles.NewEmailCache(), cfg.PollWorkers)

	if cfg.DatabasePath != "" {
		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		m.database = database
	}

	m.scheduler = scheduler.New(m.RunCycle, cfg.RefreshInterval)
	m.scheduler.OnPublish(m.recordCycle)
	if m.notifier != nil {
		m.scheduler.OnPublish(m.notifier.Observe)
	}

	return m, nil
}

// Start begins the refresh loop and, when enabled, the active-profile watcher.
// Work triggered later (HTTP refresh, watcher) runs under ctx.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	if m.cfg.WatchActive {
		w, err := profiles.NewWatcher(m.cfg.ActiveDir, func() {
			logger.Info("Active profile changed on disk, refreshing")
			m.scheduler.TriggerAsync(ctx)
		})
		if err != nil {
			logger.Warn("Active profile watcher disabled", "dir", m.cfg.ActiveDir, "error", err)
		} else {
			m.mu.Lock()
			m.watcher = w
			m.mu.Unlock()
		}
	}

	m.scheduler.Start(ctx)
}

// RunCycle scans profiles, polls them and computes the preference. It only
// fails when the collection cannot be listed.
func (m *Manager) RunCycle(ctx context.Context) (*models.AggregateSnapshot, error) {
	cycleID := uuid.NewString()
	log := logger.With("cycle", cycleID)
	start := m.now()

	accounts, currentID, err := m.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan profiles: %w", err)
	}

	metrics := m.poller.PollAll(ctx, accounts, currentID)
	if metrics == nil {
		metrics = []models.AccountSnapshot{}
	}

	// Preference ties resolve by scan order.
	order := make(map[string]int, len(accounts))
	for i, acc := range accounts {
		order[acc.ProfileID] = i
	}
	slices.SortStableFunc(metrics, func(a, b models.AccountSnapshot) int {
		return cmp.Compare(order[a.ProjectID], order[b.ProjectID])
	})

	prefer := preference.Compute(metrics, currentID, m.threshold)

	log.Info("Refresh cycle completed",
		"profiles", len(metrics),
		"current", currentID,
		"prefer", derefOr(prefer, "none"),
		"duration", m.now().Sub(start),
	)

	return &models.AggregateSnapshot{
		CycleID:          cycleID,
		CurrentProfileID: currentID,
		Prefer:           prefer,
		Metrics:          metrics,
	}, nil
}

// recordCycle stores a published snapshot in the history database.
func (m *Manager) recordCycle(_, next *models.AggregateSnapshot) {
	if m.database == nil {
		return
	}
	if err := m.database.InsertCycle(next); err != nil {
		logger.Error("Failed to record cycle", "cycle", next.CycleID, "error", err)
		return
	}
	n, err := m.database.PruneBefore(m.now().Add(-db.DefaultRetention))
	if err != nil {
		logger.Warn("Failed to prune history", "error", err)
		return
	}
	if n == 0 {
		return
	}
	logger.Debug("Pruned history rows", "rows", n)
	if err := m.database.Vacuum(); err != nil {
		logger.Warn("Failed to vacuum history database", "error", err)
	}
}

// TrySwitch switches to the preferred profile of the latest snapshot. Without
// a preference it reports the current profile and leaves the disk untouched.
func (m *Manager) TrySwitch(ctx context.Context) (models.SwitchResult, error) {
	snap := m.scheduler.Snapshot()

	if snap == nil || snap.Prefer == nil {
		id, err := m.switcher.Current(snap)
		if err != nil {
			return models.SwitchResult{}, err
		}
		return models.SwitchResult{ProfileID: id}, nil
	}

	target := *snap.Prefer
	result, err := m.switcher.SwitchTo(ctx, target)
	m.recordSwitch(snap.CurrentProfileID, target, result.Switched, err)
	if err != nil {
		return result, fmt.Errorf("failed to switch to %s: %w", target, err)
	}
	return result, nil
}

func (m *Manager) recordSwitch(from, to string, switched bool, switchErr error) {
	if m.database == nil {
		return
	}
	event := &models.SwitchEvent{
		Timestamp:   m.now(),
		FromProfile: from,
		ToProfile:   to,
		Switched:    switched,
	}
	if switchErr != nil {
		event.Error = switchErr.Error()
	}
	if err := m.database.InsertSwitchEvent(event); err != nil {
		logger.Error("Failed to record switch", "to", to, "error", err)
	}
}

// Refresh starts a cycle in the background. It returns false when one is
// already running.
func (m *Manager) Refresh() bool {
	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()
	return m.scheduler.TriggerAsync(ctx)
}

// Snapshot returns the latest published snapshot, or nil before the first cycle.
func (m *Manager) Snapshot() *models.AggregateSnapshot {
	return m.scheduler.Snapshot()
}

// LastUpdated returns when the latest snapshot was published.
func (m *Manager) LastUpdated() (time.Time, bool) {
	return m.scheduler.LastUpdated()
}

// Threshold returns the configured remaining-percent threshold.
func (m *Manager) Threshold() float64 {
	return m.threshold
}

// History returns recorded remaining percentages for one profile and family.
func (m *Manager) History(profileID, family string, since time.Time) ([]models.HistoryPoint, error) {
	if m.database == nil {
		return nil, ErrHistoryDisabled
	}
	return m.database.GetProfileHistory(profileID, family, since)
}

// Switches returns the most recent switch attempts.
func (m *Manager) Switches(limit int) ([]models.SwitchEvent, error) {
	if m.database == nil {
		return nil, ErrHistoryDisabled
	}
	return m.database.GetRecentSwitches(limit)
}

// Close stops the watcher, then the scheduler, and closes the database.
func (m *Manager) Close() error {
	var errs []error

	// The watcher triggers refreshes, so it must be gone before Stop waits.
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	m.scheduler.Stop()

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
