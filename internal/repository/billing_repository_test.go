package repository

import (
	"testing"
	"time"

	"github.com/curodigital/whatsapp-billing-relay/internal/billing"
)

func TestMonthKey_FollowsReferenceTimezone(t *testing.T) {
	jhb, err := time.LoadLocation("Africa/Johannesburg")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	// 23:30 UTC on May 31 is already June 1 in Johannesburg; the stored
	// date must say June, and the UTC rendering of the same instant must
	// not (that drift is what equality on the derived key guards against).
	instant := time.Date(2025, 5, 31, 23, 30, 0, 0, time.UTC)
	monthStart := billing.MonthStart(instant, jhb)

	if got := monthKey(monthStart); got != "2025-06-01" {
		t.Fatalf("expected month key 2025-06-01, got %s", got)
	}
	if utcDay := monthStart.UTC().Format("2006-01-02"); utcDay == monthKey(monthStart) {
		t.Fatalf("expected the UTC date %s to differ from the reference-timezone key", utcDay)
	}
}

func TestMonthKey_StableForInsertAndLookup(t *testing.T) {
	jhb, err := time.LoadLocation("Africa/Johannesburg")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	// Any two events in the same calendar month must derive the same key,
	// or the race-loser lookup misses the winning row.
	first := billing.MonthStart(time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC), jhb)
	last := billing.MonthStart(time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), jhb)

	if monthKey(first) != monthKey(last) {
		t.Fatalf("expected one key per month, got %s and %s", monthKey(first), monthKey(last))
	}
}
