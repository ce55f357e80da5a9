package service

import (
	"context"
	"fmt"
	"time"

	"github.com/curodigital/whatsapp-billing-relay/internal/billing"
	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

type billingRecordSource interface {
	GetByTimestampRange(ctx context.Context, start, end time.Time, limit, offset int) ([]domain.BillingRecord, error)
}

// ReportService is the read side: it pulls a date range of billing records
// and recomputes the summary from scratch. Nothing here writes, so it can
// run concurrently with ingestion against an eventually consistent snapshot.
type ReportService struct {
	repo       billingRecordSource
	aggregator *billing.Aggregator
	loc        *time.Location
	pageSize   int
}

func NewReportService(
	repo billingRecordSource,
	aggregator *billing.Aggregator,
	loc *time.Location,
	pageSize int,
) *ReportService {
	return &ReportService{
		repo:       repo,
		aggregator: aggregator,
		loc:        loc,
		pageSize:   pageSize,
	}
}

// MonthToDate summarizes the current calendar month in the reference
// timezone, up to now.
func (s *ReportService) MonthToDate(ctx context.Context) (*domain.BillingReport, error) {
	now := time.Now().In(s.loc)
	start := billing.MonthStart(now, s.loc)
	return s.RangeReport(ctx, start, now, now.Format("January 2006"))
}

// MonthReport summarizes one whole calendar month.
func (s *ReportService) MonthReport(ctx context.Context, year int, month time.Month) (*domain.BillingReport, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0)
	return s.RangeReport(ctx, start, end, start.Format("January 2006"))
}

// RangeReport fetches every record in [start, end) and recomputes the
// summary. Running it twice over an unchanged range yields identical output.
func (s *ReportService) RangeReport(ctx context.Context, start, end time.Time, period string) (*domain.BillingReport, error) {
	records, err := s.fetchAll(ctx, start, end)
	if err != nil {
		return nil, err
	}

	summary := s.aggregator.Summarize(records)
	summary.Period = period
	summary.StartDate = start.In(s.loc).Format("2006-01-02")
	summary.EndDate = end.In(s.loc).Format("2006-01-02")

	return &domain.BillingReport{
		BillingSummary: summary,
		RecentSessions: billing.RecentRecords(records, 10),
		GeneratedAt:    time.Now().In(s.loc).Format("2006-01-02 15:04:05"),
	}, nil
}

// ValidateCurrentMonth cross-checks the month's ledger against the billing
// invariants and returns the discrepancies found.
func (s *ReportService) ValidateCurrentMonth(ctx context.Context) ([]string, error) {
	now := time.Now().In(s.loc)
	start := billing.MonthStart(now, s.loc)

	records, err := s.fetchAll(ctx, start, now)
	if err != nil {
		return nil, err
	}

	return s.aggregator.Validate(records, s.loc), nil
}

// fetchAll pages through the range until a short page signals end-of-data.
// Months routinely exceed a single page, so a one-shot query undercounts.
func (s *ReportService) fetchAll(ctx context.Context, start, end time.Time) ([]domain.BillingRecord, error) {
	var all []domain.BillingRecord

	for offset := 0; ; offset += s.pageSize {
		page, err := s.repo.GetByTimestampRange(ctx, start, end, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch billing page at offset %d: %w", offset, err)
		}

		all = append(all, page...)

		if len(page) < s.pageSize {
			break
		}
	}

	return all, nil
}
