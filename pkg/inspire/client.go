package inspire

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/curodigital/whatsapp-billing-relay/environments"
	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

// Client talks to the Inspire CRM. Reply forwarding fails fast; the
// chat-state push is the only call with its own retry policy.
type Client struct {
	replyClient *resty.Client
	pushClient  *resty.Client
	cfg         environments.InspireConfig
}

func NewClient(cfg environments.InspireConfig) *Client {
	replyClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+cfg.APIKey)

	pushClient := resty.New().
		SetTimeout(cfg.PushTimeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		replyClient: replyClient,
		pushClient:  pushClient,
		cfg:         cfg,
	}
}

// ForwardReply sends a customer reply to Inspire. No retry: a failure here
// is terminal for the request and reported to the caller.
func (c *Client) ForwardReply(ctx context.Context, reply domain.InspireReply) error {
	reply.APIKey = c.cfg.APIKey

	resp, err := c.replyClient.R().
		SetContext(ctx).
		SetBody(reply).
		Post(c.cfg.ReplyURL)

	if err != nil {
		return fmt.Errorf("failed to forward reply to Inspire: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("Inspire rejected reply: status %d, body: %s", resp.StatusCode(), resp.String())
	}

	logger.Infof("Forwarded reply to Inspire for client %s (status: %d)", reply.ClientGUID, resp.StatusCode())

	return nil
}

// PushChatState delivers a delivery-status update to Inspire with bounded
// exponential backoff (base 2s doubling per attempt). Client errors (4xx)
// are never retried; the payload will not get better.
func (c *Client) PushChatState(ctx context.Context, push domain.ChatStatePush) error {
	push.APIKey = c.cfg.APIKey

	var lastErr error

	for attempt := 1; attempt <= c.cfg.PushMaxAttempts; attempt++ {
		resp, err := c.pushClient.R().
			SetContext(ctx).
			SetBody(push).
			Post(c.cfg.ChatStateURL)

		if err == nil && !resp.IsError() {
			logger.Infof("Inspire chat-state push succeeded for %s (attempt %d, status %d)",
				push.MessageID, attempt, resp.StatusCode())
			return nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("Inspire chat-state push rejected: status %d, body: %s",
				resp.StatusCode(), resp.String())

			if resp.StatusCode() >= http.StatusBadRequest && resp.StatusCode() < http.StatusInternalServerError {
				logger.Warnf("Inspire chat-state push got client error %d for %s, not retrying",
					resp.StatusCode(), push.MessageID)
				return lastErr
			}
		}

		logger.Warnf("Inspire chat-state push failed for %s (attempt %d/%d): %v",
			push.MessageID, attempt, c.cfg.PushMaxAttempts, lastErr)

		if attempt < c.cfg.PushMaxAttempts {
			delay := c.cfg.PushBackoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("chat-state push cancelled: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("all chat-state push attempts failed for %s: %w", push.MessageID, lastErr)
}
