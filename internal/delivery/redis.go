package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultChannelPrefix  = "notifications:user:"
	DefaultBroadcastTopic = "notifications:broadcast"
)

// RedisChannel publishes envelopes on redis pub/sub. Each user has a channel
// named prefix+userID; broadcasts go to a single topic. Redis drops messages
// for absent subscribers, which is the intended semantics.
type RedisChannel struct {
	client         redis.UniversalClient
	prefix         string
	broadcastTopic string
	timeout        time.Duration
	now            func() time.Time
}

func NewRedisChannel(client redis.UniversalClient, prefix, broadcastTopic string, timeout time.Duration) *RedisChannel {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if broadcastTopic == "" {
		broadcastTopic = DefaultBroadcastTopic
	}
	return &RedisChannel{
		client:         client,
		prefix:         prefix,
		broadcastTopic: broadcastTopic,
		timeout:        timeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (r *RedisChannel) Name() string { return "redis" }

// UserChannel returns the pub/sub channel a user's clients subscribe to.
func (r *RedisChannel) UserChannel(userID string) string {
	return r.prefix + userID
}

func (r *RedisChannel) SendToUser(ctx context.Context, userID string, event *models.NotificationEvent) error {
	return r.publish(ctx, r.UserChannel(userID), notificationEnvelope(userID, event, r.now()))
}

func (r *RedisChannel) SendUnreadCount(ctx context.Context, userID string, count int) error {
	return r.publish(ctx, r.UserChannel(userID), unreadEnvelope(userID, count, r.now()))
}

func (r *RedisChannel) Broadcast(ctx context.Context, event *models.NotificationEvent) error {
	return r.publish(ctx, r.broadcastTopic, broadcastEnvelope(event, r.now()))
}

func (r *RedisChannel) publish(ctx context.Context, channel string, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, apperrors.NewNotificationSendFailedError("redis", err))
	}
	return nil
}

var _ Channel = (*RedisChannel)(nil)
