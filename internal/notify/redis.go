package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel notifications are published on.
const DefaultChannel = "pricedesk.notifications"

// RedisNotifier publishes notifications as JSON over Redis pub/sub.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier constructs the publisher.
func NewRedisNotifier(client *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Channel returns the channel name.
func (n *RedisNotifier) Channel() string {
	return n.channel
}

// Notify publishes n. Publish failures are logged, never returned.
func (n *RedisNotifier) Notify(ctx context.Context, note Notification) {
	if n == nil || n.client == nil {
		return
	}
	payload, err := json.Marshal(note)
	if err != nil {
		n.logger.Warn("notify: marshal", slog.Any("error", err))
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Warn("notify: publish", slog.String("channel", n.channel), slog.Any("error", err))
	}
}
