package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notification is an arbitrary structured payload delivered to one user.
type Notification struct {
	Subject    string         `json:"subject"`
	Content    map[string]any `json:"content"`
	Code       int            `json:"code"`
	Persistent bool           `json:"persistent"`
	CreatedAt  int64          `json:"createdAt"`
}

type Notifier interface {
	Send(ctx context.Context, userID string, notification Notification) error
}

type redisNotifier struct {
	logger *slog.Logger
	client *redis.Client
}

func NewRedisNotifier(logger *slog.Logger, client *redis.Client) Notifier {
	return &redisNotifier{
		logger: logger.With("component", "notifier"),
		client: client,
	}
}

// ChannelFor returns the pub/sub channel a user's notifications arrive on.
func ChannelFor(userID string) string {
	return "notifications:" + userID
}

func (that *redisNotifier) Send(ctx context.Context, userID string, notification Notification) error {
	if notification.CreatedAt == 0 {
		notification.CreatedAt = time.Now().UnixMilli()
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err = that.client.Publish(ctx, ChannelFor(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	that.logger.Info("sent notification", "userID", userID, "subject", notification.Subject)

	return nil
}
