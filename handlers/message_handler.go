package handlers

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/curodigital/whatsapp-billing-relay/internal/service"
	"github.com/curodigital/whatsapp-billing-relay/pkg/response"
	"github.com/curodigital/whatsapp-billing-relay/pkg/validator"
)

type MessageHandler struct {
	service *service.MessageService
}

func NewMessageHandler(service *service.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

type SendMessageRequest struct {
	RecipientNumber string `json:"recipient_number" validate:"required,msisdn"`
	MessageBody     string `json:"message_body" validate:"required"`
	Channel         string `json:"channel" validate:"required"`
	ClientGUID      string `json:"client_guid" validate:"required"`
	CustomerName    string `json:"customer_name" validate:"required"`
}

type ReceiveReplyRequest struct {
	TrackingCode string `json:"tracking_code" validate:"required"`
	ReplyMessage string `json:"reply_message" validate:"required"`
}

// SendClientMessage godoc
// @Summary Send a CRM-originated WhatsApp message
// @Description Sends a templated WhatsApp message and logs it with a tracking code
// @Tags messages
// @Accept json
// @Produce json
// @Param message body SendMessageRequest true "Message to send"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /client-send-message [post]
func (h *MessageHandler) SendClientMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	result, err := h.service.SendClientMessage(
		c.Request().Context(),
		req.RecipientNumber, req.MessageBody, req.ClientGUID, req.CustomerName,
	)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"tracking_code": result.TrackingCode,
		"wamid":         result.Wamid,
	})
}

// ReceiveReply godoc
// @Summary Relay a customer reply to Inspire
// @Description Resolves the tracking code and forwards the reply to the CRM
// @Tags messages
// @Accept json
// @Produce json
// @Param reply body ReceiveReplyRequest true "Customer reply"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /receive-reply [post]
func (h *MessageHandler) ReceiveReply(c echo.Context) error {
	var req ReceiveReplyRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	result, err := h.service.RelayReply(c.Request().Context(), req.TrackingCode, req.ReplyMessage)
	if err != nil {
		if errors.Is(err, service.ErrTrackingNotFound) {
			return response.NotFound(c, "No message found for the given tracking code")
		}
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"tracking_code": result.TrackingCode,
		"wamid":         result.Wamid,
	})
}

// GetLatestTracking godoc
// @Summary Latest tracking code for a number
// @Description Returns the most recent sent tracking code for the recipient
// @Tags messages
// @Produce json
// @Param recipient_number path string true "Recipient mobile number"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /botforce-get-latest-tracking/{recipient_number} [get]
func (h *MessageHandler) GetLatestTracking(c echo.Context) error {
	recipientNumber := c.Param("recipient_number")
	if recipientNumber == "" {
		return response.BadRequestWithMessage(c, "recipient_number is required")
	}

	trackingCode, err := h.service.GetLatestTracking(c.Request().Context(), recipientNumber)
	if err != nil {
		if errors.Is(err, service.ErrTrackingNotFound) {
			return response.NotFound(c, "No tracking code found for this number")
		}
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"tracking_code": trackingCode,
	})
}

// GetMessageStatus godoc
// @Summary Message history for a number
// @Description Returns the last 30 days of log rows for a phone number, newest first
// @Tags messages
// @Produce json
// @Param phone_number query string true "Phone number"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /get-message-status [get]
func (h *MessageHandler) GetMessageStatus(c echo.Context) error {
	phoneNumber := c.QueryParam("phone_number")
	if phoneNumber == "" {
		return response.BadRequestWithMessage(c, "Phone number is required")
	}

	messages, err := h.service.GetMessageHistory(c.Request().Context(), phoneNumber)
	if err != nil {
		return response.InternalServerError(c, err)
	}

	return response.Ok(c, map[string]any{
		"messages": messages,
	})
}

// GetStats godoc
// @Summary Message log statistics
// @Description Returns log row counts by message type
// @Tags messages
// @Produce json
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/messages/stats [get]
func (h *MessageHandler) GetStats(c echo.Context) error {
	outbound, statusUpdates, err := h.service.GetStats(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, fmt.Errorf("failed to get stats: %w", err))
	}

	return response.Ok(c, map[string]any{
		"outbound":      outbound,
		"statusUpdates": statusUpdates,
		"total":         outbound + statusUpdates,
	})
}
