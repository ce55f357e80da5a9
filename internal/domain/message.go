package domain

import "time"

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

type MessageType string

const (
	TypeOutbound     MessageType = "outbound"
	TypeStatusUpdate MessageType = "status_update"
)

// MessageLogEntry is one row of the conversational audit log. Outbound sends
// and status updates are separate rows correlated by OriginalWamid; a row is
// never updated after insert.
type MessageLogEntry struct {
	ID               int64       `db:"id" json:"id"`
	OriginalWamid    *string     `db:"original_wamid" json:"originalWamid,omitempty"`
	TrackingCode     *string     `db:"tracking_code" json:"trackingCode,omitempty"`
	ClientGUID       *string     `db:"client_guid" json:"clientGuid,omitempty"`
	MobileNumber     string      `db:"mobile_number" json:"mobileNumber"`
	CustomerName     *string     `db:"customer_name" json:"customerName,omitempty"`
	Message          *string     `db:"message" json:"message,omitempty"`
	Channel          string      `db:"channel" json:"channel"`
	Status           string      `db:"status" json:"status"`
	MessageType      MessageType `db:"message_type" json:"messageType"`
	ErrorCode        *string     `db:"error_code" json:"errorCode,omitempty"`
	ErrorMessage     *string     `db:"error_message" json:"errorMessage,omitempty"`
	Timestamp        time.Time   `db:"timestamp" json:"timestamp"`
	StatusTimestamp  *time.Time  `db:"status_timestamp" json:"statusTimestamp,omitempty"`
}

// TrackingCache is the Valkey value for the latest tracking code of a number.
type TrackingCache struct {
	TrackingCode string    `json:"trackingCode"`
	Timestamp    time.Time `json:"timestamp"`
}

type WhatsAppSendResult struct {
	Wamid string
}

type InspireReply struct {
	ClientGUID string `json:"ClientGuid"`
	Timestamp  string `json:"Timestamp"`
	Body       string `json:"Body"`
	Channel    string `json:"Channel"`
	APIKey     string `json:"apiKey"`
}

// ChatStatePush is the payload the status-push helper delivers to Inspire
// for every recorded delivery-status event.
type ChatStatePush struct {
	APIKey          string `json:"apiKey"`
	MessageID       string `json:"messageId"`
	RecipientNumber string `json:"recipientNumber"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	StatusTimestamp string `json:"statusTimestamp"`
	Channel         string `json:"channel"`
	MessageType     string `json:"messageType"`
}
