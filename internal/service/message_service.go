package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

var ErrTrackingNotFound = errors.New("no message found for tracking code")

type messageRepository interface {
	CreateOutbound(ctx context.Context, entry *domain.MessageLogEntry) error
	GetByTrackingCode(ctx context.Context, trackingCode string) (*domain.MessageLogEntry, error)
	GetLatestTracking(ctx context.Context, mobileNumber string) (*domain.MessageLogEntry, error)
	GetHistory(ctx context.Context, mobileNumber string, since time.Time) ([]domain.MessageLogEntry, error)
	GetStats(ctx context.Context) (outbound, statusUpdates int64, err error)
}

type whatsappClient interface {
	SendTemplate(ctx context.Context, recipientNumber, customerName, message string) (*domain.WhatsAppSendResult, error)
}

type replyForwarder interface {
	ForwardReply(ctx context.Context, reply domain.InspireReply) error
}

type trackingCache interface {
	CacheLatestTracking(ctx context.Context, mobileNumber, trackingCode string, sentAt time.Time) error
	GetLatestTracking(ctx context.Context, mobileNumber string) (*domain.TrackingCache, error)
}

// MessageService relays messages between the CRM and WhatsApp: outbound
// sends get a tracking code, inbound replies resolve that code back to the
// originating client and are forwarded to Inspire.
type MessageService struct {
	repo     messageRepository
	whatsapp whatsappClient
	inspire  replyForwarder
	cache    trackingCache
}

func NewMessageService(
	repo messageRepository,
	whatsapp whatsappClient,
	inspire replyForwarder,
	cache trackingCache,
) *MessageService {
	return &MessageService{
		repo:     repo,
		whatsapp: whatsapp,
		inspire:  inspire,
		cache:    cache,
	}
}

type SendResult struct {
	TrackingCode string
	Wamid        string
}

// SendClientMessage sends a CRM-originated message to a customer over
// WhatsApp and logs it with a fresh tracking code. A WhatsApp API failure is
// terminal: nothing is logged as sent.
func (s *MessageService) SendClientMessage(
	ctx context.Context,
	recipientNumber, messageBody, clientGUID, customerName string,
) (*SendResult, error) {
	trackingCode := uuid.NewString()
	sanitized := sanitizeMessage(messageBody)
	sentAt := time.Now().UTC()

	result, err := s.whatsapp.SendTemplate(ctx, recipientNumber, customerName, sanitized)
	if err != nil {
		return nil, fmt.Errorf("WhatsApp send failed: %w", err)
	}

	entry := &domain.MessageLogEntry{
		TrackingCode: &trackingCode,
		ClientGUID:   &clientGUID,
		MobileNumber: recipientNumber,
		CustomerName: &customerName,
		Message:      &sanitized,
		Channel:      "whatsapp",
		Status:       string(domain.StatusSent),
		MessageType:  domain.TypeOutbound,
		Timestamp:    sentAt,
	}
	if result.Wamid != "" {
		wamid := result.Wamid
		entry.OriginalWamid = &wamid
	}

	if err := s.repo.CreateOutbound(ctx, entry); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheLatestTracking(ctx, recipientNumber, trackingCode, sentAt); err != nil {
			logger.Warnf("Failed to cache tracking code for %s: %v", recipientNumber, err)
		}
	}

	logger.Infof("Sent WhatsApp message to %s (tracking: %s, wamid: %s)",
		recipientNumber, trackingCode, result.Wamid)

	return &SendResult{TrackingCode: trackingCode, Wamid: result.Wamid}, nil
}

type ReplyResult struct {
	TrackingCode string
	Wamid        string
}

// RelayReply resolves a tracking code to its originating send and forwards
// the customer's reply to Inspire. Forwarding fails fast; there is no retry.
func (s *MessageService) RelayReply(ctx context.Context, trackingCode, replyMessage string) (*ReplyResult, error) {
	entry, err := s.repo.GetByTrackingCode(ctx, trackingCode)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.ClientGUID == nil {
		return nil, ErrTrackingNotFound
	}

	reply := domain.InspireReply{
		ClientGUID: *entry.ClientGUID,
		Timestamp:  time.Now().Format("2006-01-02 15:04:05"),
		Body:       sanitizeMessage(replyMessage),
		Channel:    "whatsapp",
	}

	if err := s.inspire.ForwardReply(ctx, reply); err != nil {
		return nil, err
	}

	result := &ReplyResult{TrackingCode: trackingCode}
	if entry.OriginalWamid != nil {
		result.Wamid = *entry.OriginalWamid
	}

	return result, nil
}

// GetLatestTracking returns the most recent tracking code for a number,
// consulting the cache first. The ledger stays the source of truth; cache
// misses and cache failures both fall through to it.
func (s *MessageService) GetLatestTracking(ctx context.Context, mobileNumber string) (string, error) {
	if s.cache != nil {
		cached, err := s.cache.GetLatestTracking(ctx, mobileNumber)
		if err != nil {
			logger.Warnf("Tracking cache lookup failed for %s: %v", mobileNumber, err)
		} else if cached != nil {
			return cached.TrackingCode, nil
		}
	}

	entry, err := s.repo.GetLatestTracking(ctx, mobileNumber)
	if err != nil {
		return "", err
	}
	if entry == nil || entry.TrackingCode == nil {
		return "", ErrTrackingNotFound
	}

	if s.cache != nil {
		if err := s.cache.CacheLatestTracking(ctx, mobileNumber, *entry.TrackingCode, entry.Timestamp); err != nil {
			logger.Warnf("Failed to cache tracking code for %s: %v", mobileNumber, err)
		}
	}

	return *entry.TrackingCode, nil
}

// GetMessageHistory returns the number's log rows from the last 30 days.
func (s *MessageService) GetMessageHistory(ctx context.Context, mobileNumber string) ([]domain.MessageLogEntry, error) {
	since := time.Now().UTC().AddDate(0, 0, -30)
	return s.repo.GetHistory(ctx, mobileNumber, since)
}

func (s *MessageService) GetStats(ctx context.Context) (outbound, statusUpdates int64, err error) {
	return s.repo.GetStats(ctx)
}

// sanitizeMessage collapses CR/LF runs into single spaces; the WhatsApp
// template API rejects raw newlines in body parameters.
func sanitizeMessage(text string) string {
	if text == "" {
		return ""
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	return strings.Join(fields, " ")
}
