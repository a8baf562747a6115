// Package notify raises desktop notifications when quota state changes.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
)

// SendFunc delivers one notification.
type SendFunc func(title, body string) error

func beeepSend(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Notifier compares consecutive snapshots and notifies on transitions.
type Notifier struct {
	send SendFunc
}

// New creates a Notifier. A nil send uses beeep desktop notifications.
func New(send SendFunc) *Notifier {
	if send == nil {
		send = beeepSend
	}
	return &Notifier{send: send}
}

// Observe notifies when the current profile drops below threshold or the
// preferred profile changes to a new one. It matches scheduler.PublishFunc.
func (n *Notifier) Observe(prev, next *models.AggregateSnapshot) {
	if next == nil {
		return
	}

	if id, ok := next.CurrentFromMetrics(); ok {
		cur, _ := next.Find(id)
		if isLow(cur) && !wasLow(prev, id) {
			remaining, _ := cur.TopTierRemaining()
			n.notify(
				fmt.Sprintf("Low quota: %s", label(cur)),
				fmt.Sprintf("%s remaining is %.1f%%", models.TopTier, remaining),
			)
		}
	}

	if next.Prefer != nil && (prev == nil || prev.Prefer == nil || *prev.Prefer != *next.Prefer) {
		n.notify(
			"Better profile available",
			fmt.Sprintf("Switch to %s", *next.Prefer),
		)
	}
}

func (n *Notifier) notify(title, body string) {
	if err := n.send(title, body); err != nil {
		logger.Warn("Failed to send notification", "title", title, "error", err)
	}
}

func isLow(s models.AccountSnapshot) bool {
	return s.IsCurrentLow != nil && *s.IsCurrentLow
}

func wasLow(prev *models.AggregateSnapshot, id string) bool {
	s, ok := prev.Find(id)
	return ok && isLow(s)
}

func label(s models.AccountSnapshot) string {
	if s.Email != "" {
		return s.Email
	}
	return s.ProjectID
}
