package database

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/curodigital/whatsapp-billing-relay/environments"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

func NewPostgresDB(cfg environments.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Infof("Connected to PostgreSQL database")
	return db, nil
}

func RunMigrations(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS billing_records (
		id                   BIGSERIAL PRIMARY KEY,
		mobile_number        VARCHAR(20) NOT NULL,
		whatsapp_message_id  TEXT,
		message_timestamp    TIMESTAMPTZ NOT NULL,
		session_start_time   TIMESTAMPTZ NOT NULL,
		cost_utility         NUMERIC(12,4) NOT NULL DEFAULT 0,
		cost_carrier         NUMERIC(12,4) NOT NULL DEFAULT 0,
		cost_mau             NUMERIC(12,4) NOT NULL DEFAULT 0,
		total_cost           NUMERIC(12,4) NOT NULL DEFAULT 0,
		is_mau_charged       BOOLEAN NOT NULL DEFAULT false,
		message_month        DATE NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_billing_records_mobile
		ON billing_records (mobile_number);
	CREATE INDEX IF NOT EXISTS idx_billing_records_timestamp
		ON billing_records (message_timestamp);
	CREATE INDEX IF NOT EXISTS idx_billing_records_mobile_timestamp
		ON billing_records (mobile_number, message_timestamp DESC);

	-- One MAU charge per number per month, enforced by the store so two
	-- concurrent writers cannot both win the first-of-month race.
	CREATE UNIQUE INDEX IF NOT EXISTS uq_billing_records_mau_month
		ON billing_records (mobile_number, message_month)
		WHERE is_mau_charged;

	CREATE TABLE IF NOT EXISTS messages_log (
		id               BIGSERIAL PRIMARY KEY,
		original_wamid   TEXT,
		tracking_code    TEXT UNIQUE,
		client_guid      TEXT,
		mobile_number    VARCHAR(20) NOT NULL,
		customer_name    TEXT,
		message          TEXT,
		channel          VARCHAR(20) NOT NULL DEFAULT 'whatsapp',
		status           VARCHAR(20) NOT NULL DEFAULT 'sent',
		message_type     VARCHAR(20) NOT NULL DEFAULT 'outbound',
		error_code       TEXT,
		error_message    TEXT,
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		status_timestamp TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_messages_log_mobile
		ON messages_log (mobile_number);
	CREATE INDEX IF NOT EXISTS idx_messages_log_tracking
		ON messages_log (tracking_code);
	CREATE INDEX IF NOT EXISTS idx_messages_log_timestamp
		ON messages_log (timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_log_wamid
		ON messages_log (original_wamid);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Infof("Database migrations completed")

	return nil
}

func SeedTestData(db *sqlx.DB) error {
	var count int

	err := db.Get(&count, "SELECT COUNT(*) FROM messages_log")
	if err != nil {
		return err
	}

	if count > 0 {
		logger.Infof("Database already has %d log rows, skipping seed", count)
		return nil
	}

	testMessages := []struct {
		trackingCode string
		clientGUID   string
		mobileNumber string
		customerName string
		message      string
	}{
		{"6f1f6f6e-0001-4f3a-9a01-aaaaaaaaaaaa", "client-001", "+27821234567", "T. Mokoena", "Your occupational health appointment is confirmed for Monday 09:00."},
		{"6f1f6f6e-0002-4f3a-9a01-bbbbbbbbbbbb", "client-002", "+27825550911", "S. Naidoo", "Please complete your pre-screening questionnaire before your visit."},
		{"6f1f6f6e-0003-4f3a-9a01-cccccccccccc", "client-001", "+27839998877", "L. van Wyk", "Your medical certificate is ready for collection."},
	}

	for _, msg := range testMessages {
		_, err := db.Exec(
			`INSERT INTO messages_log
				(tracking_code, client_guid, mobile_number, customer_name, message, channel, status, message_type)
			 VALUES ($1, $2, $3, $4, $5, 'whatsapp', 'sent', 'outbound')`,
			msg.trackingCode, msg.clientGUID, msg.mobileNumber, msg.customerName, msg.message,
		)
		if err != nil {
			return fmt.Errorf("failed to seed test data: %w", err)
		}
	}

	logger.Infof("Seeded %d test messages", len(testMessages))
	return nil
}
