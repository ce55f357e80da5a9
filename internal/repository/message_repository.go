package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
)

// MessageRepository handles database operations for the conversational log.
// Rows are append-only: status updates are inserted as their own rows and
// correlated to the original send by original_wamid, never by mutating it.
type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id, original_wamid, tracking_code, client_guid, mobile_number, customer_name,
	message, channel, status, message_type, error_code, error_message,
	timestamp, status_timestamp
`

func (r *MessageRepository) CreateOutbound(ctx context.Context, entry *domain.MessageLogEntry) error {
	query := `
		INSERT INTO messages_log (
			original_wamid, tracking_code, client_guid, mobile_number, customer_name,
			message, channel, status, message_type, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	row := r.db.QueryRowxContext(ctx, query,
		entry.OriginalWamid, entry.TrackingCode, entry.ClientGUID, entry.MobileNumber,
		entry.CustomerName, entry.Message, entry.Channel, entry.Status, entry.MessageType,
		entry.Timestamp,
	)
	if err := row.Scan(&entry.ID); err != nil {
		return fmt.Errorf("failed to create outbound message: %w", err)
	}

	return nil
}

func (r *MessageRepository) CreateStatusUpdate(ctx context.Context, entry *domain.MessageLogEntry) error {
	query := `
		INSERT INTO messages_log (
			original_wamid, mobile_number, channel, status, message_type,
			error_code, error_message, timestamp, status_timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	row := r.db.QueryRowxContext(ctx, query,
		entry.OriginalWamid, entry.MobileNumber, entry.Channel, entry.Status,
		entry.MessageType, entry.ErrorCode, entry.ErrorMessage,
		entry.Timestamp, entry.StatusTimestamp,
	)
	if err := row.Scan(&entry.ID); err != nil {
		return fmt.Errorf("failed to create status update: %w", err)
	}

	return nil
}

// GetByTrackingCode resolves a tracking code to its outbound send row.
// Returns nil when the code is unknown.
func (r *MessageRepository) GetByTrackingCode(ctx context.Context, trackingCode string) (*domain.MessageLogEntry, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages_log
		WHERE tracking_code = $1
	`

	var entry domain.MessageLogEntry
	if err := r.db.GetContext(ctx, &entry, query, trackingCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message by tracking code: %w", err)
	}

	return &entry, nil
}

// GetLatestTracking returns the most recent sent outbound row carrying a
// tracking code for the number, or nil when none exists.
func (r *MessageRepository) GetLatestTracking(ctx context.Context, mobileNumber string) (*domain.MessageLogEntry, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages_log
		WHERE mobile_number = $1 AND status = 'sent' AND tracking_code IS NOT NULL
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var entry domain.MessageLogEntry
	if err := r.db.GetContext(ctx, &entry, query, mobileNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest tracking: %w", err)
	}

	return &entry, nil
}

// GetHistory returns a number's log rows since the given instant, newest first.
func (r *MessageRepository) GetHistory(
	ctx context.Context,
	mobileNumber string,
	since time.Time,
) ([]domain.MessageLogEntry, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages_log
		WHERE mobile_number = $1 AND timestamp >= $2
		ORDER BY timestamp DESC
	`

	var entries []domain.MessageLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, mobileNumber, since); err != nil {
		return nil, fmt.Errorf("failed to get message history: %w", err)
	}

	return entries, nil
}

// GetStats returns row counts by message type for the health/stats surface.
func (r *MessageRepository) GetStats(ctx context.Context) (outbound, statusUpdates int64, err error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN message_type = 'outbound' THEN 1 ELSE 0 END), 0)      AS outbound,
			COALESCE(SUM(CASE WHEN message_type = 'status_update' THEN 1 ELSE 0 END), 0) AS status_updates
		FROM messages_log
	`

	var stats struct {
		Outbound      int64 `db:"outbound"`
		StatusUpdates int64 `db:"status_updates"`
	}

	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return 0, 0, fmt.Errorf("failed to get message stats: %w", err)
	}

	return stats.Outbound, stats.StatusUpdates, nil
}
