package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
	"github.com/curodigital/whatsapp-billing-relay/internal/service"
	"github.com/curodigital/whatsapp-billing-relay/pkg/validator"
)

type stubMessageRepo struct {
	outbound []*domain.MessageLogEntry
}

func (s *stubMessageRepo) CreateOutbound(_ context.Context, entry *domain.MessageLogEntry) error {
	s.outbound = append(s.outbound, entry)
	return nil
}

func (s *stubMessageRepo) GetByTrackingCode(_ context.Context, _ string) (*domain.MessageLogEntry, error) {
	return nil, nil
}

func (s *stubMessageRepo) GetLatestTracking(_ context.Context, _ string) (*domain.MessageLogEntry, error) {
	return nil, nil
}

func (s *stubMessageRepo) GetHistory(_ context.Context, _ string, _ time.Time) ([]domain.MessageLogEntry, error) {
	return nil, nil
}

func (s *stubMessageRepo) GetStats(_ context.Context) (int64, int64, error) {
	return 0, 0, nil
}

type stubWhatsApp struct{}

func (stubWhatsApp) SendTemplate(_ context.Context, _, _, _ string) (*domain.WhatsAppSendResult, error) {
	return &domain.WhatsAppSendResult{Wamid: "wamid.ABC123"}, nil
}

type stubForwarder struct{}

func (stubForwarder) ForwardReply(_ context.Context, _ domain.InspireReply) error {
	return nil
}

func postSendMessage(t *testing.T, handler *MessageHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	e.Validator = validator.New()
	req := httptest.NewRequest(http.MethodPost, "/client-send-message", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.SendClientMessage(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestSendClientMessage_AcceptsValidRequest(t *testing.T) {
	repo := &stubMessageRepo{}
	svc := service.NewMessageService(repo, stubWhatsApp{}, stubForwarder{}, nil)
	handler := NewMessageHandler(svc)

	body := `{
		"recipient_number": "+27821234567",
		"message_body": "Hello",
		"channel": "whatsapp",
		"client_guid": "guid-1",
		"customer_name": "Thandi"
	}`

	rec := postSendMessage(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.outbound) != 1 {
		t.Fatalf("expected 1 outbound log row, got %d", len(repo.outbound))
	}
}

func TestSendClientMessage_RejectsMalformedNumber(t *testing.T) {
	repo := &stubMessageRepo{}
	svc := service.NewMessageService(repo, stubWhatsApp{}, stubForwarder{}, nil)
	handler := NewMessageHandler(svc)

	body := `{
		"recipient_number": "0821234567x",
		"message_body": "Hello",
		"channel": "whatsapp",
		"client_guid": "guid-1",
		"customer_name": "Thandi"
	}`

	rec := postSendMessage(t, handler, body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a malformed number, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "recipient_number") {
		t.Fatalf("expected recipient_number in validation details, got %s", rec.Body.String())
	}
	if len(repo.outbound) != 0 {
		t.Fatalf("expected nothing sent or logged for a rejected request")
	}
}

func TestSendClientMessage_RejectsMissingFields(t *testing.T) {
	svc := service.NewMessageService(&stubMessageRepo{}, stubWhatsApp{}, stubForwarder{}, nil)
	handler := NewMessageHandler(svc)

	rec := postSendMessage(t, handler, `{"recipient_number": "+27821234567"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing fields, got %d", rec.Code)
	}
}
