package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

var (
	ErrMissingMobileNumber = errors.New("mobile number is required")
	ErrMissingTimestamp    = errors.New("event timestamp is required")
	ErrMissingStatus       = errors.New("event status is required")
)

// Calculator assigns cost fields to a new billing record at ingestion time.
// MAU and carrier fees are mutually exclusive: the month's first message
// carries utility + MAU, every later session opening carries utility +
// carrier, and an in-session message after the first of the month carries
// nothing at all.
type Calculator struct {
	utilityFee decimal.Decimal
	carrierFee decimal.Decimal
	mauFee     decimal.Decimal
}

func NewCalculator(utilityFee, carrierFee, mauFee decimal.Decimal) *Calculator {
	return &Calculator{
		utilityFee: utilityFee,
		carrierFee: carrierFee,
		mauFee:     mauFee,
	}
}

// Decide computes the charge lines for one event. openSessionStart is the
// start of the session the event extends (nil when isNewSession); it matters
// when a session spans a month boundary and the first-of-month charge lands
// mid-session.
func (c *Calculator) Decide(
	isNewSession bool,
	isFirstOfMonth bool,
	eventTime time.Time,
	openSessionStart *time.Time,
) domain.ChargeDecision {
	decision := domain.ChargeDecision{
		IsNewSession:   isNewSession,
		IsFirstOfMonth: isFirstOfMonth,
		Billable:       isNewSession || isFirstOfMonth,
		CostUtility:    decimal.Zero,
		CostCarrier:    decimal.Zero,
		CostMAU:        decimal.Zero,
		TotalCost:      decimal.Zero,
	}

	if !decision.Billable {
		return decision
	}

	decision.SessionStartTime = eventTime
	if !isNewSession && openSessionStart != nil {
		decision.SessionStartTime = *openSessionStart
	}

	decision.CostUtility = c.utilityFee
	if isFirstOfMonth {
		decision.CostMAU = c.mauFee
	} else if isNewSession {
		decision.CostCarrier = c.carrierFee
	}
	decision.TotalCost = decision.CostUtility.Add(decision.CostCarrier).Add(decision.CostMAU)

	return decision
}

// ValidateEvent rejects events missing the fields a charge decision depends
// on. Never default to a charge on bad input.
func ValidateEvent(event domain.StatusEvent) error {
	if event.RecipientID == "" {
		return ErrMissingMobileNumber
	}
	if event.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if event.Status == "" {
		return ErrMissingStatus
	}
	return nil
}
