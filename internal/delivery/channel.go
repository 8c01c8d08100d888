// Package delivery pushes persisted notifications to live subscribers.
// Every transport is best-effort: callers log failures and move on, clients
// resync from the notification store when they reconnect.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/common/metrics"
	"finance-notifier/internal/models"
)

var ErrDeliveryFailed = errors.New("NOTIFICATION_SEND_FAILED")

// Channel is the push surface used by the rule engine and the API.
type Channel interface {
	SendToUser(ctx context.Context, userID string, event *models.NotificationEvent) error
	SendUnreadCount(ctx context.Context, userID string, count int) error
	Broadcast(ctx context.Context, event *models.NotificationEvent) error
}

// Message types carried in Envelope.Type.
const (
	TypeNotification = "notification"
	TypeUnreadCount  = "unread_count"
	TypeBroadcast    = "broadcast"
)

// Envelope is the JSON frame written to every transport.
type Envelope struct {
	Type         string                    `json:"type"`
	UserID       string                    `json:"userId,omitempty"`
	Notification *models.NotificationEvent `json:"notification,omitempty"`
	Count        *int                      `json:"count,omitempty"`
	SentAt       time.Time                 `json:"sentAt"`
}

func notificationEnvelope(userID string, event *models.NotificationEvent, now time.Time) Envelope {
	return Envelope{Type: TypeNotification, UserID: userID, Notification: event, SentAt: now}
}

func unreadEnvelope(userID string, count int, now time.Time) Envelope {
	return Envelope{Type: TypeUnreadCount, UserID: userID, Count: &count, SentAt: now}
}

func broadcastEnvelope(event *models.NotificationEvent, now time.Time) Envelope {
	return Envelope{Type: TypeBroadcast, Notification: event, SentAt: now}
}

// Transport is a Channel with a stable name used as the metrics label.
type Transport interface {
	Channel
	Name() string
}

// Multi fans every push out to all channels. A failing channel does not stop
// the others; the joined error is returned.
type Multi struct {
	channels []Transport
	logger   logger.Logger
}

func NewMulti(log logger.Logger, channels ...Transport) *Multi {
	return &Multi{
		channels: channels,
		logger:   log.WithFields(map[string]interface{}{"component": "delivery"}),
	}
}

func (m *Multi) SendToUser(ctx context.Context, userID string, event *models.NotificationEvent) error {
	return m.each(TypeNotification, func(c Transport) error { return c.SendToUser(ctx, userID, event) })
}

func (m *Multi) SendUnreadCount(ctx context.Context, userID string, count int) error {
	return m.each(TypeUnreadCount, func(c Transport) error { return c.SendUnreadCount(ctx, userID, count) })
}

func (m *Multi) Broadcast(ctx context.Context, event *models.NotificationEvent) error {
	return m.each(TypeBroadcast, func(c Transport) error { return c.Broadcast(ctx, event) })
}

func (m *Multi) each(msgType string, push func(Transport) error) error {
	var errs []error
	for _, c := range m.channels {
		if err := push(c); err != nil {
			metrics.Deliveries.WithLabelValues(c.Name(), "failed").Inc()
			m.logger.Warn("delivery failed", map[string]interface{}{
				"channel": c.Name(),
				"type":    msgType,
				"error":   err,
			})
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		metrics.Deliveries.WithLabelValues(c.Name(), "sent").Inc()
	}
	return errors.Join(errs...)
}

// LogChannel only writes pushes to the log. Used when no transport is configured.
type LogChannel struct {
	logger logger.Logger
}

func NewLogChannel(log logger.Logger) *LogChannel {
	return &LogChannel{logger: log.WithFields(map[string]interface{}{"channel": "log"})}
}

func (l *LogChannel) Name() string { return "log" }

func (l *LogChannel) SendToUser(_ context.Context, userID string, event *models.NotificationEvent) error {
	l.logger.Info("notification", map[string]interface{}{
		"userId":         userID,
		"notificationId": event.ID,
		"kind":           string(event.Kind),
		"urgency":        string(event.Urgency),
	})
	return nil
}

func (l *LogChannel) SendUnreadCount(_ context.Context, userID string, count int) error {
	l.logger.Debug("unread count", map[string]interface{}{"userId": userID, "count": count})
	return nil
}

func (l *LogChannel) Broadcast(_ context.Context, event *models.NotificationEvent) error {
	l.logger.Info("broadcast", map[string]interface{}{
		"notificationId": event.ID,
		"kind":           string(event.Kind),
	})
	return nil
}

var (
	_ Channel = (*Multi)(nil)
	_ Channel = (*LogChannel)(nil)
)
