package quota

import (
	"context"
	"fmt"
	"sync"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// DefaultWorkers is the poller's worker count when none is configured.
const DefaultWorkers = 3

// CredentialSource resolves the credentials of a profile directory.
type CredentialSource interface {
	Resolve(ctx context.Context, profileDir string) *models.Credentials
}

// UsageFetcher fetches quota for resolved credentials.
type UsageFetcher interface {
	FetchUsage(ctx context.Context, creds *models.Credentials, profileDir, fallbackProjectID string) models.AccountSnapshot
}

// EmailLookup resolves the account email of a profile directory.
type EmailLookup interface {
	Email(profileID, profileDir string) string
}

// Poller polls every profile with a fixed number of workers.
type Poller struct {
	creds   CredentialSource
	fetcher UsageFetcher
	emails  EmailLookup
	workers int
}

// NewPoller creates a Poller. emails may be nil.
func NewPoller(creds CredentialSource, fetcher UsageFetcher, emails EmailLookup, workers int) *Poller {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Poller{creds: creds, fetcher: fetcher, emails: emails, workers: workers}
}

// PollAll returns one snapshot per account. Output order is unspecified.
func (p *Poller) PollAll(ctx context.Context, accounts []models.Account, currentID string) []models.AccountSnapshot {
	if len(accounts) == 0 {
		return nil
	}

	tasks := make(chan models.Account, len(accounts))
	for _, acc := range accounts {
		tasks <- acc
	}
	close(tasks)

	results := make(chan models.AccountSnapshot, len(accounts))

	// Workers never fail: errors and panics end up in the snapshots.
	var wg sync.WaitGroup
	for range min(p.workers, len(accounts)) {
		wg.Go(func() {
			for acc := range tasks {
				results <- p.poll(ctx, acc, currentID)
			}
		})
	}
	wg.Wait()
	close(results)

	snapshots := make([]models.AccountSnapshot, 0, len(accounts))
	for snap := range results {
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// poll runs one profile's task. A panic becomes that profile's error.
func (p *Poller) poll(ctx context.Context, acc models.Account, currentID string) (snap models.AccountSnapshot) {
	isCurrent := acc.ProfileID == currentID

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Poll task panicked", "profile", acc.ProfileID, "panic", r)
			snap = models.AccountSnapshot{
				ProjectID: acc.ProfileID,
				Email:     acc.Email,
				IsCurrent: isCurrent,
				Status:    models.StatusUnknown,
				Error:     "internal error",
				Hint:      fmt.Sprint(r),
			}
		}
	}()

	creds := p.creds.Resolve(ctx, acc.Dir)
	snap = p.fetcher.FetchUsage(ctx, creds, acc.Dir, acc.ProfileID)
	snap.ProjectID = acc.ProfileID
	snap.IsCurrent = isCurrent

	snap.Email = acc.Email
	if snap.Email == "" && p.emails != nil {
		snap.Email = p.emails.Email(acc.ProfileID, acc.Dir)
	}

	if isCurrent {
		if pro, ok := snap.Models[models.TopTier]; ok {
			low := pro.LowThreshold
			snap.IsCurrentLow = &low
		}
	}

	logger.Debug("Polled profile", "profile", acc.ProfileID, "status", snap.Status)
	return snap
}
