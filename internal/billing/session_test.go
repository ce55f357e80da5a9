package billing

import (
	"testing"
	"time"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

const sessionGap = 1430 * time.Minute

func recordAt(number string, minutes int) domain.BillingRecord {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return domain.BillingRecord{
		MobileNumber:     number,
		MessageTimestamp: base.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestIsNewSession_NoPriorRecord(t *testing.T) {
	c := NewClassifier(sessionGap)

	if !c.IsNewSession(nil, time.Now()) {
		t.Fatalf("expected new session when no prior record exists")
	}
}

func TestIsNewSession_GapBoundary(t *testing.T) {
	c := NewClassifier(sessionGap)
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	// Exactly 1430 minutes apart: same session.
	at1430 := base.Add(1430 * time.Minute)
	if c.IsNewSession(&base, at1430) {
		t.Fatalf("expected same session at exactly 1430 minutes")
	}

	// 1431 minutes apart: new session.
	at1431 := base.Add(1431 * time.Minute)
	if !c.IsNewSession(&base, at1431) {
		t.Fatalf("expected new session at 1431 minutes")
	}
}

func TestGroupSessions_AnchorFromSessionStart(t *testing.T) {
	c := NewClassifier(sessionGap)

	// Consecutive gaps of 1000 minutes each, but the second message sits
	// 2000 minutes after the session anchor, past the threshold. The anchor
	// rule yields two sessions where a consecutive-gap rule would yield one.
	records := []domain.BillingRecord{
		recordAt("+27821234567", 0),
		recordAt("+27821234567", 1000),
		recordAt("+27821234567", 2000),
	}

	sessions := c.GroupSessions(records)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if len(sessions[0]) != 2 {
		t.Fatalf("expected first session to hold 2 records, got %d", len(sessions[0]))
	}
	if len(sessions[1]) != 1 {
		t.Fatalf("expected second session to hold 1 record, got %d", len(sessions[1]))
	}
	if !sessions[1][0].MessageTimestamp.Equal(recordAt("", 2000).MessageTimestamp) {
		t.Fatalf("expected second session to open at t0+2000min")
	}
}

func TestGroupSessions_SortsUnorderedInput(t *testing.T) {
	c := NewClassifier(sessionGap)

	records := []domain.BillingRecord{
		recordAt("+27821234567", 2000),
		recordAt("+27821234567", 0),
		recordAt("+27821234567", 1000),
	}

	sessions := c.GroupSessions(records)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions from unordered input, got %d", len(sessions))
	}
}

func TestGroupSessions_Empty(t *testing.T) {
	c := NewClassifier(sessionGap)

	if sessions := c.GroupSessions(nil); sessions != nil {
		t.Fatalf("expected nil sessions for empty input, got %v", sessions)
	}
}

func TestMonthStart(t *testing.T) {
	jhb, err := time.LoadLocation("Africa/Johannesburg")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	// 23:30 UTC on May 31 is already June 1 in Johannesburg (UTC+2).
	instant := time.Date(2025, 5, 31, 23, 30, 0, 0, time.UTC)
	got := MonthStart(instant, jhb)
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, jhb)

	if !got.Equal(want) {
		t.Fatalf("expected month start %v, got %v", want, got)
	}
}
