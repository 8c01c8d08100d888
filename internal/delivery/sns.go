package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the subset of the SNS client used here.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSBroadcaster publishes envelopes to one SNS topic. Subscribers (mobile push,
// queues) filter on the "type" and "userId" message attributes.
type SNSBroadcaster struct {
	client   SNSService
	topicARN string
	now      func() time.Time
}

func NewSNSBroadcaster(client SNSService, topicARN string) *SNSBroadcaster {
	return &SNSBroadcaster{
		client:   client,
		topicARN: topicARN,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SNSBroadcaster) Name() string { return "sns" }

func (s *SNSBroadcaster) SendToUser(ctx context.Context, userID string, event *models.NotificationEvent) error {
	return s.publish(ctx, notificationEnvelope(userID, event, s.now()), event.Title)
}

func (s *SNSBroadcaster) SendUnreadCount(ctx context.Context, userID string, count int) error {
	return s.publish(ctx, unreadEnvelope(userID, count, s.now()), "")
}

func (s *SNSBroadcaster) Broadcast(ctx context.Context, event *models.NotificationEvent) error {
	return s.publish(ctx, broadcastEnvelope(event, s.now()), event.Title)
}

func (s *SNSBroadcaster) publish(ctx context.Context, env Envelope, subject string) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	attrs := map[string]types.MessageAttributeValue{
		"type": {DataType: aws.String("String"), StringValue: aws.String(env.Type)},
	}
	if env.UserID != "" {
		attrs["userId"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(env.UserID)}
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(payload)),
		MessageAttributes: attrs,
	}
	if subject != "" {
		input.Subject = aws.String(subject)
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, apperrors.NewNotificationSendFailedError("sns", err))
	}
	return nil
}

var _ Channel = (*SNSBroadcaster)(nil)
