package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingRecord is one persisted charge event. Records are append-only:
// corrections are new rows, never updates.
type BillingRecord struct {
	ID                int64           `db:"id" json:"id"`
	MobileNumber      string          `db:"mobile_number" json:"mobileNumber"`
	WhatsAppMessageID *string         `db:"whatsapp_message_id" json:"whatsappMessageId,omitempty"`
	MessageTimestamp  time.Time       `db:"message_timestamp" json:"messageTimestamp"`
	SessionStartTime  time.Time       `db:"session_start_time" json:"sessionStartTime"`
	CostUtility       decimal.Decimal `db:"cost_utility" json:"costUtility"`
	CostCarrier       decimal.Decimal `db:"cost_carrier" json:"costCarrier"`
	CostMAU           decimal.Decimal `db:"cost_mau" json:"costMau"`
	TotalCost         decimal.Decimal `db:"total_cost" json:"totalCost"`
	IsMAUCharged      bool            `db:"is_mau_charged" json:"isMauCharged"`
	MessageMonth      time.Time       `db:"message_month" json:"messageMonth"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// StatusEvent is one delivery-status update from the WhatsApp webhook.
// RecipientID is the subscriber's mobile number.
type StatusEvent struct {
	MessageID    string
	RecipientID  string
	Status       string
	Timestamp    time.Time
	ErrorCode    *string
	ErrorMessage *string
}

// BillingSummary is the aggregator output for one date range.
type BillingSummary struct {
	Period             string          `json:"period"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate"`
	TotalMessages      int             `json:"totalMessages"`
	BillableSessions   int             `json:"billableSessions"`
	MonthlyActiveUsers int             `json:"monthlyActiveUsers"`
	SessionCost        decimal.Decimal `json:"sessionCost"`
	MAUCost            decimal.Decimal `json:"mauCost"`
	TotalCost          decimal.Decimal `json:"totalCost"`
	CarrierCount       int             `json:"carrierCount"`
	CarrierTotal       decimal.Decimal `json:"carrierTotal"`
	UtilityCount       int             `json:"utilityCount"`
	UtilityTotal       decimal.Decimal `json:"utilityTotal"`
}

// BillingReport is the summary plus presentation extras served by the
// reporting endpoints.
type BillingReport struct {
	BillingSummary
	RecentSessions []BillingRecord `json:"recentSessions"`
	GeneratedAt    string          `json:"generatedAt"`
}

// ChargeDecision is the Charge Calculator output for a single event.
// Billable is false when the event extends an open session and the
// subscriber already has a record this month; no row is written then.
type ChargeDecision struct {
	Billable         bool
	IsNewSession     bool
	IsFirstOfMonth   bool
	SessionStartTime time.Time
	CostUtility      decimal.Decimal
	CostCarrier      decimal.Decimal
	CostMAU          decimal.Decimal
	TotalCost        decimal.Decimal
}
