package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
	"github.com/curodigital/whatsapp-billing-relay/internal/service"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

type WebhookHandler struct {
	billingService *service.BillingService
}

func NewWebhookHandler(billingService *service.BillingService) *WebhookHandler {
	return &WebhookHandler{billingService: billingService}
}

// Shape of the WhatsApp Business delivery-status webhook payload.
type statusWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Statuses []statusUpdate `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type statusUpdate struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Errors      []struct {
		Code    int    `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
}

// HandleStatusWebhook godoc
// @Summary WhatsApp delivery-status webhook
// @Description Ingests delivery-status updates and records billing charges
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /whatsapp-status-webhook [post]
//
// Always acks 2xx once processing is attempted; WhatsApp retries anything
// else and a retry storm of duplicate statuses is worse than a logged
// failure. Per-status errors are reported in the body.
func (h *WebhookHandler) HandleStatusWebhook(c echo.Context) error {
	var payload statusWebhookPayload
	if err := c.Bind(&payload); err != nil {
		logger.Warnf("Status webhook payload did not parse: %v", err)
		return c.JSON(http.StatusOK, map[string]any{
			"message": "No status updates to process",
		})
	}

	statuses := extractStatuses(payload)
	if len(statuses) == 0 {
		return c.JSON(http.StatusOK, map[string]any{
			"message": "No status updates to process",
		})
	}

	processed := 0
	failed := 0
	var failures []string

	for _, status := range statuses {
		event := toStatusEvent(status)

		if _, err := h.billingService.RecordStatusEvent(c.Request().Context(), event); err != nil {
			logger.Errorf("Failed to process status for message %s: %v", status.ID, err)
			failed++
			failures = append(failures, err.Error())
			continue
		}
		processed++
	}

	logger.Infof("Status webhook: processed %d, failed %d", processed, failed)

	return c.JSON(http.StatusOK, map[string]any{
		"message":   "Status updates processed",
		"processed": processed,
		"failed":    failed,
		"errors":    failures,
	})
}

func extractStatuses(payload statusWebhookPayload) []statusUpdate {
	var statuses []statusUpdate
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			statuses = append(statuses, change.Value.Statuses...)
		}
	}
	return statuses
}

func toStatusEvent(status statusUpdate) domain.StatusEvent {
	event := domain.StatusEvent{
		MessageID:   status.ID,
		RecipientID: status.RecipientID,
		Status:      status.Status,
	}

	if unix, err := strconv.ParseInt(status.Timestamp, 10, 64); err == nil && unix > 0 {
		event.Timestamp = time.Unix(unix, 0).UTC()
	}

	if len(status.Errors) > 0 {
		code := strconv.Itoa(status.Errors[0].Code)
		message := status.Errors[0].Message
		if message == "" {
			message = status.Errors[0].Title
		}
		event.ErrorCode = &code
		event.ErrorMessage = &message
	}

	return event
}
