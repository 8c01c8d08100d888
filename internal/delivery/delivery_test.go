package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentAt = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func testEvent() *models.NotificationEvent {
	return &models.NotificationEvent{
		ID:          "3f0c6a6e-5d8e-4b8f-9a57-1f0b7d1c2e11",
		UserID:      "u1",
		Kind:        models.KindBudgetExceeded,
		Urgency:     models.UrgencyHigh,
		Title:       "Budget exceeded",
		Message:     "You have spent 1000.00 of your 1000.00 Groceries budget.",
		ReferenceID: "b1",
		Amount:      decimal.NewFromInt(1000),
		Label:       "Groceries",
		CreatedAt:   sentAt,
	}
}

// ==========================
// Redis
// ==========================

func TestRedisChannel_SendToUser(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ch := NewRedisChannel(client, "", "", time.Second)
	ch.now = func() time.Time { return sentAt }

	ev := testEvent()
	payload, err := json.Marshal(notificationEnvelope("u1", ev, sentAt))
	require.NoError(t, err)

	mock.ExpectPublish("notifications:user:u1", payload).SetVal(1)

	require.NoError(t, ch.SendToUser(context.Background(), "u1", ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisChannel_SendUnreadCount(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ch := NewRedisChannel(client, "inbox:", "", 0)
	ch.now = func() time.Time { return sentAt }

	payload, err := json.Marshal(unreadEnvelope("u1", 3, sentAt))
	require.NoError(t, err)
	mock.ExpectPublish("inbox:u1", payload).SetVal(0)

	require.NoError(t, ch.SendUnreadCount(context.Background(), "u1", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisChannel_PublishFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ch := NewRedisChannel(client, "", "", time.Second)
	ch.now = func() time.Time { return sentAt }

	ev := testEvent()
	payload, _ := json.Marshal(broadcastEnvelope(ev, sentAt))
	mock.ExpectPublish(DefaultBroadcastTopic, payload).SetErr(errors.New("connection refused"))

	err := ch.Broadcast(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
}

func TestRedisChannel_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := NewRedisChannel(client, "", "", time.Second)
	sub := client.Subscribe(ctx, ch.UserChannel("u1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, ch.SendToUser(ctx, "u1", testEvent()))
	require.NoError(t, ch.SendUnreadCount(ctx, "u1", 7))

	var got []Envelope
	for len(got) < 2 {
		select {
		case msg := <-sub.Channel():
			var env Envelope
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
			got = append(got, env)
		case <-ctx.Done():
			t.Fatal("timed out waiting for pub/sub messages")
		}
	}

	assert.Equal(t, TypeNotification, got[0].Type)
	require.NotNil(t, got[0].Notification)
	assert.Equal(t, models.KindBudgetExceeded, got[0].Notification.Kind)
	assert.True(t, got[0].Notification.Amount.Equal(decimal.NewFromInt(1000)))

	assert.Equal(t, TypeUnreadCount, got[1].Type)
	require.NotNil(t, got[1].Count)
	assert.Equal(t, 7, *got[1].Count)
}

// ==========================
// SNS
// ==========================

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func TestSNSBroadcaster_SendToUser(t *testing.T) {
	var captured *sns.PublishInput
	svc := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}
	b := NewSNSBroadcaster(svc, "arn:aws:sns:us-east-1:123456789012:notifications")

	require.NoError(t, b.SendToUser(context.Background(), "u1", testEvent()))
	require.NotNil(t, captured)

	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:notifications", *captured.TopicArn)
	assert.Equal(t, "Budget exceeded", *captured.Subject)
	assert.Equal(t, "u1", *captured.MessageAttributes["userId"].StringValue)
	assert.Equal(t, TypeNotification, *captured.MessageAttributes["type"].StringValue)

	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(*captured.Message), &env))
	assert.Equal(t, "b1", env.Notification.ReferenceID)
}

func TestSNSBroadcaster_BroadcastHasNoUserAttribute(t *testing.T) {
	var captured *sns.PublishInput
	svc := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}
	b := NewSNSBroadcaster(svc, "arn:topic")

	require.NoError(t, b.Broadcast(context.Background(), testEvent()))
	_, hasUser := captured.MessageAttributes["userId"]
	assert.False(t, hasUser)
}

func TestSNSBroadcaster_Failure(t *testing.T) {
	svc := &MockSNSService{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	err := NewSNSBroadcaster(svc, "arn:topic").SendUnreadCount(context.Background(), "u1", 1)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
}

// ==========================
// Fan-out
// ==========================

type recordingChannel struct {
	name  string
	err   error
	calls []string
}

func (r *recordingChannel) Name() string { return r.name }

func (r *recordingChannel) SendToUser(_ context.Context, userID string, _ *models.NotificationEvent) error {
	r.calls = append(r.calls, "user:"+userID)
	return r.err
}

func (r *recordingChannel) SendUnreadCount(_ context.Context, userID string, _ int) error {
	r.calls = append(r.calls, "count:"+userID)
	return r.err
}

func (r *recordingChannel) Broadcast(context.Context, *models.NotificationEvent) error {
	r.calls = append(r.calls, "broadcast")
	return r.err
}

func TestMulti_ContinuesPastFailingChannel(t *testing.T) {
	broken := &recordingChannel{name: "broken", err: errors.New("down")}
	healthy := &recordingChannel{name: "healthy"}
	m := NewMulti(logger.NewTestLogger(t), broken, healthy, NewLogChannel(logger.NewNoOpLogger()))

	err := m.SendToUser(context.Background(), "u1", testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	assert.Equal(t, []string{"user:u1"}, broken.calls)
	assert.Equal(t, []string{"user:u1"}, healthy.calls)
}

func TestMulti_AllHealthy(t *testing.T) {
	a := &recordingChannel{name: "a"}
	b := &recordingChannel{name: "b"}
	m := NewMulti(logger.NewNoOpLogger(), a, b)

	require.NoError(t, m.SendUnreadCount(context.Background(), "u1", 2))
	require.NoError(t, m.Broadcast(context.Background(), testEvent()))
	assert.Equal(t, []string{"count:u1", "broadcast"}, a.calls)
	assert.Equal(t, a.calls, b.calls)
}
