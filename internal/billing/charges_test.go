package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

func testCalculator() *Calculator {
	return NewCalculator(
		decimal.RequireFromString("0.0076"),
		decimal.RequireFromString("0.0100"),
		decimal.RequireFromString("0.0600"),
	)
}

func TestDecide_FirstOfMonth(t *testing.T) {
	calc := testCalculator()
	eventTime := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	decision := calc.Decide(true, true, eventTime, nil)

	if !decision.Billable {
		t.Fatalf("expected first-of-month event to be billable")
	}
	if !decision.CostUtility.Equal(decimal.RequireFromString("0.0076")) {
		t.Fatalf("expected utility fee 0.0076, got %s", decision.CostUtility)
	}
	if !decision.CostMAU.Equal(decimal.RequireFromString("0.0600")) {
		t.Fatalf("expected MAU fee 0.0600, got %s", decision.CostMAU)
	}
	if !decision.CostCarrier.IsZero() {
		t.Fatalf("expected no carrier fee alongside MAU, got %s", decision.CostCarrier)
	}
	if !decision.TotalCost.Equal(decimal.RequireFromString("0.0676")) {
		t.Fatalf("expected total 0.0676, got %s", decision.TotalCost)
	}
	if !decision.SessionStartTime.Equal(eventTime) {
		t.Fatalf("expected session to start at the event time")
	}
}

func TestDecide_NewSessionNotFirstOfMonth(t *testing.T) {
	calc := testCalculator()
	eventTime := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

	decision := calc.Decide(true, false, eventTime, nil)

	if !decision.Billable {
		t.Fatalf("expected new session to be billable")
	}
	if !decision.CostCarrier.Equal(decimal.RequireFromString("0.0100")) {
		t.Fatalf("expected carrier fee 0.0100, got %s", decision.CostCarrier)
	}
	if !decision.CostMAU.IsZero() {
		t.Fatalf("expected no MAU fee on a mid-month session, got %s", decision.CostMAU)
	}
	if !decision.TotalCost.Equal(decimal.RequireFromString("0.0176")) {
		t.Fatalf("expected total 0.0176, got %s", decision.TotalCost)
	}
}

func TestDecide_FirstOfMonthMidSession(t *testing.T) {
	calc := testCalculator()
	sessionStart := time.Date(2025, 4, 30, 23, 0, 0, 0, time.UTC)
	eventTime := sessionStart.Add(3 * time.Hour)

	// The month's first message lands inside a session that opened in the
	// previous month: it carries utility + MAU but keeps the open session's
	// start time, and no carrier fee.
	decision := calc.Decide(false, true, eventTime, &sessionStart)

	if !decision.Billable {
		t.Fatalf("expected mid-session first-of-month event to be billable")
	}
	if !decision.CostCarrier.IsZero() {
		t.Fatalf("expected no carrier fee mid-session, got %s", decision.CostCarrier)
	}
	if !decision.CostMAU.Equal(decimal.RequireFromString("0.0600")) {
		t.Fatalf("expected MAU fee 0.0600, got %s", decision.CostMAU)
	}
	if !decision.SessionStartTime.Equal(sessionStart) {
		t.Fatalf("expected session start %v to be carried, got %v", sessionStart, decision.SessionStartTime)
	}
}

func TestDecide_NotBillable(t *testing.T) {
	calc := testCalculator()
	eventTime := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

	decision := calc.Decide(false, false, eventTime, nil)

	if decision.Billable {
		t.Fatalf("expected in-session repeat event to be non-billable")
	}
	if !decision.TotalCost.IsZero() {
		t.Fatalf("expected zero total for non-billable event, got %s", decision.TotalCost)
	}
}

func TestDecide_TotalMatchesLineCharges(t *testing.T) {
	calc := testCalculator()
	eventTime := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name           string
		isNewSession   bool
		isFirstOfMonth bool
	}{
		{"first of month", true, true},
		{"new session", true, false},
		{"mid-session first of month", false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := calc.Decide(tc.isNewSession, tc.isFirstOfMonth, eventTime, &eventTime)
			sum := d.CostUtility.Add(d.CostCarrier).Add(d.CostMAU)
			if !d.TotalCost.Equal(sum) {
				t.Fatalf("total %s does not equal line charge sum %s", d.TotalCost, sum)
			}
			if d.CostMAU.IsPositive() && d.CostCarrier.IsPositive() {
				t.Fatalf("MAU and carrier fees must never appear together")
			}
		})
	}
}

func TestValidateEvent(t *testing.T) {
	valid := domain.StatusEvent{
		MessageID:   "wamid.test",
		RecipientID: "+27821234567",
		Status:      string(domain.StatusSent),
		Timestamp:   time.Now(),
	}

	if err := ValidateEvent(valid); err != nil {
		t.Fatalf("expected valid event to pass, got %v", err)
	}

	missingNumber := valid
	missingNumber.RecipientID = ""
	if err := ValidateEvent(missingNumber); !errors.Is(err, ErrMissingMobileNumber) {
		t.Fatalf("expected ErrMissingMobileNumber, got %v", err)
	}

	missingTimestamp := valid
	missingTimestamp.Timestamp = time.Time{}
	if err := ValidateEvent(missingTimestamp); !errors.Is(err, ErrMissingTimestamp) {
		t.Fatalf("expected ErrMissingTimestamp, got %v", err)
	}

	missingStatus := valid
	missingStatus.Status = ""
	if err := ValidateEvent(missingStatus); !errors.Is(err, ErrMissingStatus) {
		t.Fatalf("expected ErrMissingStatus, got %v", err)
	}
}
