package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/curodigital/whatsapp-billing-relay/environments"
	"github.com/curodigital/whatsapp-billing-relay/internal/domain"
	"github.com/curodigital/whatsapp-billing-relay/pkg/logger"
)

// Client caches the latest tracking code per mobile number. Billing state is
// never cached here: session and MAU decisions always go back to the store.
type Client struct {
	client valkey.Client
}

const (
	trackingKeyPrefix = "latest_tracking:"
	trackingTTL       = 24 * time.Hour
)

func NewRedisClient(cfg environments.RedisConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infof("Connected to Redis (via Valkey client)")

	return &Client{client: client}, nil
}

func (c *Client) CacheLatestTracking(ctx context.Context, mobileNumber, trackingCode string, sentAt time.Time) error {
	cache := domain.TrackingCache{
		TrackingCode: trackingCode,
		Timestamp:    sentAt,
	}

	data, err := json.Marshal(cache)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	key := trackingKeyPrefix + mobileNumber

	err = c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).Ex(trackingTTL).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to cache tracking code: %w", err)
	}

	logger.Debugf("Cached tracking code for %s -> %s", mobileNumber, trackingCode)

	return nil
}

func (c *Client) GetLatestTracking(ctx context.Context, mobileNumber string) (*domain.TrackingCache, error) {
	key := trackingKeyPrefix + mobileNumber

	result := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if result.Error() != nil {
		if valkey.IsValkeyNil(result.Error()) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached tracking code: %w", result.Error())
	}

	data, err := result.ToString()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached tracking code: %w", err)
	}

	var cache domain.TrackingCache
	if err := json.Unmarshal([]byte(data), &cache); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &cache, nil
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
