package whatsapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/curodigital/whatsapp-billing-relay/environments"
	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

// Client sends templated messages through the WhatsApp Business API.
// A send either succeeds or fails for the whole request; retrying the
// outbound call is the caller's business, not ours.
type Client struct {
	httpClient *resty.Client
	cfg        environments.WhatsAppConfig
}

type templateRequest struct {
	Payload     templatePayload `json:"payload"`
	PhoneNumber string          `json:"phoneNumber"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Components []templateComponent `json:"components"`
	Language   templateLanguage    `json:"language"`
	Namespace  string              `json:"namespace"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	Image *templateImage `json:"image,omitempty"`
}

type templateImage struct {
	Link string `json:"link"`
}

type templateLanguage struct {
	Code   string `json:"code"`
	Policy string `json:"policy"`
}

type templateResponse struct {
	ResponseObject struct {
		MessageID string `json:"message_id"`
	} `json:"responseObject"`
}

func NewClient(cfg environments.WhatsAppConfig) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", cfg.AuthToken)

	return &Client{
		httpClient: client,
		cfg:        cfg,
	}
}

// SendTemplate delivers one templated message and returns the wamid assigned
// by the WhatsApp API.
func (c *Client) SendTemplate(
	ctx context.Context,
	recipientNumber, customerName, message string,
) (*domain.WhatsAppSendResult, error) {
	payload := templateRequest{
		Payload: templatePayload{
			Name: c.cfg.TemplateName,
			Components: []templateComponent{
				{
					Type: "header",
					Parameters: []templateParameter{
						{Type: "image", Image: &templateImage{Link: c.cfg.HeaderImage}},
					},
				},
				{
					Type: "body",
					Parameters: []templateParameter{
						{Type: "text", Text: customerName},
						{Type: "text", Text: message},
					},
				},
			},
			Language:  templateLanguage{Code: "en_US", Policy: "deterministic"},
			Namespace: c.cfg.Namespace,
		},
		PhoneNumber: recipientNumber,
	}

	var templateResp templateResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&templateResp).
		Post(c.cfg.BaseURL)

	if err != nil {
		return nil, fmt.Errorf("failed to send WhatsApp request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from WhatsApp API: %d, body: %s", resp.StatusCode(), resp.String())
	}

	if templateResp.ResponseObject.MessageID == "" {
		logger.Warnf("WhatsApp API returned no message_id for %s", recipientNumber)
	}

	return &domain.WhatsAppSendResult{Wamid: templateResp.ResponseObject.MessageID}, nil
}
