package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

// ErrDuplicateMAUCharge is returned when an insert loses the race for the
// month's single MAU charge: the partial unique index on
// (mobile_number, message_month) WHERE is_mau_charged rejected the row.
var ErrDuplicateMAUCharge = errors.New("MAU charge already exists for this number and month")

const pgUniqueViolation = "23505"

// monthKey renders a month-start instant as the DATE value stored in
// message_month. Insert and lookup must derive the date the same way:
// binding the zoned timestamp directly would let the date→timestamptz
// promotion shift it across midnight for non-UTC reference timezones.
func monthKey(monthStart time.Time) string {
	return monthStart.Format("2006-01-02")
}

// BillingRepository handles database operations for billing records.
// The table is append-only; there are no update or delete operations.
type BillingRepository struct {
	db *sqlx.DB
}

func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) Insert(ctx context.Context, rec *domain.BillingRecord) error {
	query := `
		INSERT INTO billing_records (
			mobile_number, whatsapp_message_id, message_timestamp, session_start_time,
			cost_utility, cost_carrier, cost_mau, total_cost, is_mau_charged, message_month
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		rec.MobileNumber, rec.WhatsAppMessageID, rec.MessageTimestamp, rec.SessionStartTime,
		rec.CostUtility, rec.CostCarrier, rec.CostMAU, rec.TotalCost, rec.IsMAUCharged, monthKey(rec.MessageMonth),
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateMAUCharge
		}
		return fmt.Errorf("failed to insert billing record: %w", err)
	}

	return nil
}

// GetLastSessionRecord returns the newest record for a number at or after the
// session cutoff instant, or nil when the trailing window is empty.
func (r *BillingRepository) GetLastSessionRecord(
	ctx context.Context,
	mobileNumber string,
	cutoff time.Time,
) (*domain.BillingRecord, error) {
	query := `
		SELECT id, mobile_number, whatsapp_message_id, message_timestamp, session_start_time,
		       cost_utility, cost_carrier, cost_mau, total_cost, is_mau_charged, message_month, created_at
		FROM billing_records
		WHERE mobile_number = $1 AND message_timestamp >= $2
		ORDER BY message_timestamp DESC
		LIMIT 1
	`

	var rec domain.BillingRecord
	if err := r.db.GetContext(ctx, &rec, query, mobileNumber, cutoff); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last session record: %w", err)
	}

	return &rec, nil
}

// GetLastMAUCharge returns the number's MAU-charged record for the month
// starting at monthStart, or nil when the month has none.
func (r *BillingRepository) GetLastMAUCharge(
	ctx context.Context,
	mobileNumber string,
	monthStart time.Time,
) (*domain.BillingRecord, error) {
	query := `
		SELECT id, mobile_number, whatsapp_message_id, message_timestamp, session_start_time,
		       cost_utility, cost_carrier, cost_mau, total_cost, is_mau_charged, message_month, created_at
		FROM billing_records
		WHERE mobile_number = $1 AND is_mau_charged = true AND message_month = $2
		ORDER BY message_timestamp DESC
		LIMIT 1
	`

	var rec domain.BillingRecord
	if err := r.db.GetContext(ctx, &rec, query, mobileNumber, monthKey(monthStart)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last MAU charge: %w", err)
	}

	return &rec, nil
}

// HasRecordInMonth reports whether any billing record exists for the number
// since monthStart, charged or not. This drives the first-of-month decision.
func (r *BillingRepository) HasRecordInMonth(
	ctx context.Context,
	mobileNumber string,
	monthStart time.Time,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM billing_records
			WHERE mobile_number = $1 AND message_timestamp >= $2
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, mobileNumber, monthStart); err != nil {
		return false, fmt.Errorf("failed to check month records: %w", err)
	}

	return exists, nil
}

// GetByTimestampRange returns one page of records with message_timestamp in
// [start, end), newest first. Callers loop with increasing offset until a
// short page signals end-of-data.
func (r *BillingRepository) GetByTimestampRange(
	ctx context.Context,
	start, end time.Time,
	limit, offset int,
) ([]domain.BillingRecord, error) {
	query := `
		SELECT id, mobile_number, whatsapp_message_id, message_timestamp, session_start_time,
		       cost_utility, cost_carrier, cost_mau, total_cost, is_mau_charged, message_month, created_at
		FROM billing_records
		WHERE message_timestamp >= $1 AND message_timestamp < $2
		ORDER BY message_timestamp DESC
		LIMIT $3 OFFSET $4
	`

	var records []domain.BillingRecord
	if err := r.db.SelectContext(ctx, &records, query, start, end, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to get billing records: %w", err)
	}

	return records, nil
}
