// Package notify forwards stored notifications to external delivery channels.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/pkg/logger"
)

// SQSAPI subset of *sqs.Client used here
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSForwarder publishes each notification as a JSON message so that an
// external worker can render and deliver it (push, SMS, e-mail).
type SQSForwarder struct {
	client   SQSAPI
	queueURL string
}

func NewSQSForwarder(client SQSAPI, queueURL string) *SQSForwarder {
	return &SQSForwarder{client: client, queueURL: queueURL}
}

// NewSQSForwarderFromConfig uses the default AWS credential chain.
func NewSQSForwarderFromConfig(ctx context.Context, region, queueURL string) (*SQSForwarder, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSForwarder(sqs.NewFromConfig(cfg), queueURL), nil
}

type message struct {
	NotificationID uint                    `json:"notification_id"`
	RecipientType  model.RecipientType     `json:"recipient_type"`
	RecipientID    uint                    `json:"recipient_id"`
	Event          model.NotificationEvent `json:"event"`
	OrderID        *uint                   `json:"order_id,omitempty"`
	Payload        json.RawMessage         `json:"payload,omitempty"`
}

func (f *SQSForwarder) Forward(ctx context.Context, notification *model.Notification) error {
	msg := message{
		NotificationID: notification.ID,
		RecipientType:  notification.RecipientType,
		RecipientID:    notification.RecipientID,
		Event:          notification.Event,
		OrderID:        notification.OrderID,
	}
	if len(notification.Payload) > 0 {
		msg.Payload = json.RawMessage(notification.Payload)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(f.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(notification.Event)),
			},
			"recipient_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(notification.RecipientType)),
			},
			"recipient_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatUint(uint64(notification.RecipientID), 10)),
			},
		},
	}

	out, err := f.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	logger.Debug("Notification forwarded to queue", map[string]interface{}{
		"notification_id": notification.ID,
		"message_id":      aws.ToString(out.MessageId),
	})
	return nil
}
