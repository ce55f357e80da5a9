package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

// Aggregator recomputes billing statistics from raw records. It never trusts
// a previously derived aggregate: sessions are re-grouped from scratch on
// every run, so two runs over the same record set produce identical output.
// Only the MAU cost is read back from the persisted rows, because MAU
// charging happened at ingestion time and must not be derived twice.
type Aggregator struct {
	classifier *Classifier
	utilityFee decimal.Decimal
	carrierFee decimal.Decimal
}

func NewAggregator(classifier *Classifier, utilityFee, carrierFee decimal.Decimal) *Aggregator {
	return &Aggregator{
		classifier: classifier,
		utilityFee: utilityFee,
		carrierFee: carrierFee,
	}
}

func (a *Aggregator) Summarize(records []domain.BillingRecord) domain.BillingSummary {
	summary := domain.BillingSummary{
		TotalMessages: len(records),
		SessionCost:   decimal.Zero,
		MAUCost:       decimal.Zero,
		TotalCost:     decimal.Zero,
		CarrierTotal:  decimal.Zero,
		UtilityTotal:  decimal.Zero,
	}

	groups := groupByNumber(records)
	summary.MonthlyActiveUsers = len(groups)

	for _, numberRecords := range groups {
		sessions := a.classifier.GroupSessions(numberRecords)
		summary.BillableSessions += len(sessions)
	}

	summary.CarrierCount = summary.BillableSessions
	summary.UtilityCount = summary.BillableSessions

	sessionCount := decimal.NewFromInt(int64(summary.BillableSessions))
	summary.CarrierTotal = a.carrierFee.Mul(sessionCount)
	summary.UtilityTotal = a.utilityFee.Mul(sessionCount)
	summary.SessionCost = summary.CarrierTotal.Add(summary.UtilityTotal)

	for _, rec := range records {
		if rec.IsMAUCharged {
			summary.MAUCost = summary.MAUCost.Add(rec.CostMAU)
		}
	}

	summary.TotalCost = summary.SessionCost.Add(summary.MAUCost)

	return summary
}

// RecentRecords returns the n newest records by message timestamp.
func RecentRecords(records []domain.BillingRecord, n int) []domain.BillingRecord {
	sorted := make([]domain.BillingRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MessageTimestamp.After(sorted[j].MessageTimestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func groupByNumber(records []domain.BillingRecord) map[string][]domain.BillingRecord {
	groups := make(map[string][]domain.BillingRecord)
	for _, rec := range records {
		groups[rec.MobileNumber] = append(groups[rec.MobileNumber], rec)
	}
	return groups
}
