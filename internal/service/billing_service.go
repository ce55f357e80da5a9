package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curodigital/whatsapp-billing-relay/internal/billing"
	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
	"github.com/curodigital/whatsapp-billing-relay/internal/repository"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

// Small internal interfaces so we can test without touching real DB/Inspire.
type billingRepository interface {
	Insert(ctx context.Context, rec *domain.BillingRecord) error
	GetLastSessionRecord(ctx context.Context, mobileNumber string, cutoff time.Time) (*domain.BillingRecord, error)
	GetLastMAUCharge(ctx context.Context, mobileNumber string, monthStart time.Time) (*domain.BillingRecord, error)
	HasRecordInMonth(ctx context.Context, mobileNumber string, monthStart time.Time) (bool, error)
}

type statusLogRepository interface {
	CreateStatusUpdate(ctx context.Context, entry *domain.MessageLogEntry) error
}

type chatStatePusher interface {
	PushChatState(ctx context.Context, push domain.ChatStatePush) error
}

// BillingService runs the ingestion path: delivery-status event in, session
// decision, charge decision, one billing row out. The service holds no state
// between events; every decision is re-derived from store queries so any
// number of replicas can run this concurrently.
type BillingService struct {
	billingRepo billingRepository
	messageRepo statusLogRepository
	pusher      chatStatePusher
	classifier  *billing.Classifier
	calculator  *billing.Calculator
	loc         *time.Location
}

func NewBillingService(
	billingRepo billingRepository,
	messageRepo statusLogRepository,
	pusher chatStatePusher,
	classifier *billing.Classifier,
	calculator *billing.Calculator,
	loc *time.Location,
) *BillingService {
	return &BillingService{
		billingRepo: billingRepo,
		messageRepo: messageRepo,
		pusher:      pusher,
		classifier:  classifier,
		calculator:  calculator,
		loc:         loc,
	}
}

// RecordStatusEvent validates and persists one delivery-status event: the
// billing row when the event is billable, then the conversational status row.
// The returned billing record is nil for non-billable events. The Inspire
// chat-state push happens after persistence and its failure is logged, never
// surfaced; webhook senders get their ack once the log row is durable.
func (s *BillingService) RecordStatusEvent(ctx context.Context, event domain.StatusEvent) (*domain.BillingRecord, error) {
	if err := billing.ValidateEvent(event); err != nil {
		return nil, fmt.Errorf("invalid status event: %w", err)
	}

	rec, err := s.chargeEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	if err := s.logStatusEvent(ctx, event); err != nil {
		return rec, err
	}

	s.pushStatus(event)

	return rec, nil
}

// chargeEvent is the read-decide-write sequence. There is no transaction
// around it; the partial unique index on (mobile_number, message_month)
// WHERE is_mau_charged is what keeps two concurrent "first of month"
// decisions from both landing. The loser retries once as not-first-of-month.
func (s *BillingService) chargeEvent(ctx context.Context, event domain.StatusEvent) (*domain.BillingRecord, error) {
	monthStart := billing.MonthStart(event.Timestamp, s.loc)

	last, err := s.billingRepo.GetLastSessionRecord(ctx, event.RecipientID, s.classifier.SessionCutoff(event.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	var lastTimestamp, openSessionStart *time.Time
	if last != nil {
		lastTimestamp = &last.MessageTimestamp
		openSessionStart = &last.SessionStartTime
	}

	isNewSession := s.classifier.IsNewSession(lastTimestamp, event.Timestamp)

	hasRecordThisMonth, err := s.billingRepo.HasRecordInMonth(ctx, event.RecipientID, monthStart)
	if err != nil {
		return nil, fmt.Errorf("month lookup failed: %w", err)
	}

	decision := s.calculator.Decide(isNewSession, !hasRecordThisMonth, event.Timestamp, openSessionStart)
	if !decision.Billable {
		logger.Debugf("Event for %s at %s extends an open session, nothing to bill",
			event.RecipientID, event.Timestamp.Format(time.RFC3339))
		return nil, nil
	}

	rec := s.buildRecord(event, decision, monthStart)

	err = s.billingRepo.Insert(ctx, rec)
	if errors.Is(err, repository.ErrDuplicateMAUCharge) {
		return s.retryAsNotFirstOfMonth(ctx, event, isNewSession, openSessionStart, monthStart)
	}
	if err != nil {
		return nil, fmt.Errorf("billing insert failed: %w", err)
	}

	logger.Infof("Billed %s: utility=%s carrier=%s mau=%s (newSession=%v firstOfMonth=%v)",
		event.RecipientID, rec.CostUtility.StringFixed(4), rec.CostCarrier.StringFixed(4),
		rec.CostMAU.StringFixed(4), decision.IsNewSession, decision.IsFirstOfMonth)

	return rec, nil
}

// retryAsNotFirstOfMonth handles the losing side of the MAU race: another
// writer already charged this month's MAU between our read and our write.
func (s *BillingService) retryAsNotFirstOfMonth(
	ctx context.Context,
	event domain.StatusEvent,
	isNewSession bool,
	openSessionStart *time.Time,
	monthStart time.Time,
) (*domain.BillingRecord, error) {
	winner, err := s.billingRepo.GetLastMAUCharge(ctx, event.RecipientID, monthStart)
	if err == nil && winner != nil {
		logger.Warnf("Lost MAU race for %s: record %d already carries this month's charge",
			event.RecipientID, winner.ID)
	}

	decision := s.calculator.Decide(isNewSession, false, event.Timestamp, openSessionStart)
	if !decision.Billable {
		return nil, nil
	}

	rec := s.buildRecord(event, decision, monthStart)
	if err := s.billingRepo.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("billing insert retry failed: %w", err)
	}

	return rec, nil
}

func (s *BillingService) buildRecord(
	event domain.StatusEvent,
	decision domain.ChargeDecision,
	monthStart time.Time,
) *domain.BillingRecord {
	rec := &domain.BillingRecord{
		MobileNumber:     event.RecipientID,
		MessageTimestamp: event.Timestamp,
		SessionStartTime: decision.SessionStartTime,
		CostUtility:      decision.CostUtility,
		CostCarrier:      decision.CostCarrier,
		CostMAU:          decision.CostMAU,
		TotalCost:        decision.TotalCost,
		IsMAUCharged:     decision.IsFirstOfMonth,
		MessageMonth:     monthStart,
	}
	if event.MessageID != "" {
		messageID := event.MessageID
		rec.WhatsAppMessageID = &messageID
	}
	return rec
}

func (s *BillingService) logStatusEvent(ctx context.Context, event domain.StatusEvent) error {
	now := time.Now().UTC()
	entry := &domain.MessageLogEntry{
		MobileNumber:    event.RecipientID,
		Channel:         "whatsapp",
		Status:          event.Status,
		MessageType:     domain.TypeStatusUpdate,
		ErrorCode:       event.ErrorCode,
		ErrorMessage:    event.ErrorMessage,
		Timestamp:       event.Timestamp,
		StatusTimestamp: &now,
	}
	if event.MessageID != "" {
		wamid := event.MessageID
		entry.OriginalWamid = &wamid
	}

	if err := s.messageRepo.CreateStatusUpdate(ctx, entry); err != nil {
		return fmt.Errorf("failed to log status event: %w", err)
	}

	return nil
}

// pushStatus hands the event to Inspire in the background. The webhook ack
// must not wait out three backoff rounds.
func (s *BillingService) pushStatus(event domain.StatusEvent) {
	if s.pusher == nil {
		return
	}

	push := domain.ChatStatePush{
		MessageID:       event.MessageID,
		RecipientNumber: event.RecipientID,
		Status:          event.Status,
		Timestamp:       event.Timestamp.UTC().Format(time.RFC3339),
		StatusTimestamp: time.Now().UTC().Format(time.RFC3339),
		Channel:         "whatsapp",
		MessageType:     string(domain.TypeStatusUpdate),
	}

	go func() {
		// Bounded by the pusher's per-call timeout and attempt cap.
		if err := s.pusher.PushChatState(context.Background(), push); err != nil {
			logger.Errorf("Inspire chat-state push failed for %s: %v", push.MessageID, err)
		}
	}()
}
