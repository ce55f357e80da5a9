package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

// Validate cross-checks a record set against the billing invariants and
// reports discrepancies as human-readable issues. It never fails hard: a
// broken ledger is something to surface, not something to crash on.
//
// Checks:
//   - at most one MAU charge per subscriber per calendar month
//   - MAU and carrier fees never on the same record
//   - total_cost equals the sum of the three line charges
//   - recomputed carrier/utility totals match the persisted sums
func (a *Aggregator) Validate(records []domain.BillingRecord, loc *time.Location) []string {
	var issues []string

	mauCounts := make(map[string]int)
	for _, rec := range records {
		if rec.IsMAUCharged {
			key := rec.MobileNumber + "|" + MonthStart(rec.MessageTimestamp, loc).Format("2006-01")
			mauCounts[key]++
		}

		if rec.CostMAU.IsPositive() && rec.CostCarrier.IsPositive() {
			issues = append(issues, fmt.Sprintf(
				"MAU and carrier fees on the same record (id %d, number %s)",
				rec.ID, rec.MobileNumber))
		}

		expectedTotal := rec.CostUtility.Add(rec.CostCarrier).Add(rec.CostMAU)
		if !rec.TotalCost.Equal(expectedTotal) {
			issues = append(issues, fmt.Sprintf(
				"Total cost mismatch on record %d: stored %s, line charges sum to %s",
				rec.ID, rec.TotalCost.StringFixed(4), expectedTotal.StringFixed(4)))
		}
	}

	var duplicated []string
	for key, count := range mauCounts {
		if count > 1 {
			duplicated = append(duplicated, key)
		}
	}
	sort.Strings(duplicated)
	for _, key := range duplicated {
		issues = append(issues, fmt.Sprintf(
			"Multiple MAU charges for same number in same month (%s, count %d)",
			key, mauCounts[key]))
	}

	issues = append(issues, a.checkSessionTotals(records)...)

	return issues
}

// checkSessionTotals compares the session fees recomputed from re-derived
// sessions against what was actually persisted. A session opened by the
// month's first message carries the MAU fee instead of the carrier fee, and
// a first-of-month record landing mid-session adds a utility line without
// opening a session; both are folded into the expectation. A mismatch means
// ingestion classified sessions differently than the aggregator does now,
// usually because of out-of-order or replayed events.
func (a *Aggregator) checkSessionTotals(records []domain.BillingRecord) []string {
	var issues []string

	persistedCarrier := decimal.Zero
	persistedUtility := decimal.Zero
	mauRecords := 0
	for _, rec := range records {
		persistedCarrier = persistedCarrier.Add(rec.CostCarrier)
		persistedUtility = persistedUtility.Add(rec.CostUtility)
		if rec.IsMAUCharged {
			mauRecords++
		}
	}

	sessionCount := 0
	mauOpenedSessions := 0
	for _, numberRecords := range groupByNumber(records) {
		for _, session := range a.classifier.GroupSessions(numberRecords) {
			sessionCount++
			if session[0].IsMAUCharged {
				mauOpenedSessions++
			}
		}
	}

	carrierSessions := sessionCount - mauOpenedSessions
	utilityLines := sessionCount + (mauRecords - mauOpenedSessions)

	recomputedCarrier := a.carrierFee.Mul(decimal.NewFromInt(int64(carrierSessions)))
	if !persistedCarrier.Equal(recomputedCarrier) {
		issues = append(issues, fmt.Sprintf(
			"Carrier total mismatch: persisted %s, recomputed %s from %d carrier-billed sessions",
			persistedCarrier.StringFixed(4), recomputedCarrier.StringFixed(4), carrierSessions))
	}

	recomputedUtility := a.utilityFee.Mul(decimal.NewFromInt(int64(utilityLines)))
	if !persistedUtility.Equal(recomputedUtility) {
		issues = append(issues, fmt.Sprintf(
			"Utility total mismatch: persisted %s, recomputed %s from %d billable lines",
			persistedUtility.StringFixed(4), recomputedUtility.StringFixed(4), utilityLines))
	}

	return issues
}
