package billing

import (
	"sort"
	"time"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

// Classifier partitions a subscriber's message stream into billing sessions
// using a fixed inactivity gap (23h50m by default). It carries no state of
// its own; every decision is derived from the inputs.
type Classifier struct {
	gap time.Duration
}

func NewClassifier(gap time.Duration) *Classifier {
	return &Classifier{gap: gap}
}

// IsNewSession decides whether an event at eventTime opens a new session.
// lastTimestamp is the most recent prior record inside the trailing window
// (nil when there is none). A gap of exactly the threshold still belongs to
// the same session; the session opens at threshold + 1 minute.
func (c *Classifier) IsNewSession(lastTimestamp *time.Time, eventTime time.Time) bool {
	if lastTimestamp == nil {
		return true
	}
	return eventTime.Sub(*lastTimestamp) > c.gap
}

// GroupSessions re-derives sessions from a subscriber's records. The gap is
// measured from the first message of the current session (the anchor), not
// from the immediately preceding message, so a slow drip of messages still
// rolls into a new session once the anchor ages past the threshold.
func (c *Classifier) GroupSessions(records []domain.BillingRecord) [][]domain.BillingRecord {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]domain.BillingRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MessageTimestamp.Before(sorted[j].MessageTimestamp)
	})

	var sessions [][]domain.BillingRecord
	current := []domain.BillingRecord{sorted[0]}
	anchor := sorted[0].MessageTimestamp

	for _, rec := range sorted[1:] {
		if rec.MessageTimestamp.Sub(anchor) > c.gap {
			sessions = append(sessions, current)
			current = []domain.BillingRecord{rec}
			anchor = rec.MessageTimestamp
		} else {
			current = append(current, rec)
		}
	}
	sessions = append(sessions, current)

	return sessions
}

// SessionCutoff is the earliest instant still inside the trailing session
// window for an event at eventTime. Used by the last-session store query.
func (c *Classifier) SessionCutoff(eventTime time.Time) time.Time {
	return eventTime.Add(-c.gap)
}

// MonthStart returns the first instant of eventTime's calendar month in the
// reference timezone. Month-scoped MAU lookups key on this value.
func MonthStart(eventTime time.Time, loc *time.Location) time.Time {
	t := eventTime.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}
