// Package queue provides the SQS-based producer that announces applied status
// transitions to downstream workers (certificate generation, mail delivery).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"eventline/internal/config"
	"eventline/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// TransitionProducer publishes TransitionMessage payloads to the transition
// queue after a status change has been persisted. Consumers decide what the
// transition means for them; this producer carries no routing logic.
type TransitionProducer struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewTransitionProducer creates a producer writing to the transition queue
// configured in AWSConfig.
func NewTransitionProducer(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *TransitionProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionProducer{
		client:   client,
		queueURL: awsCfg.TransitionQueue,
		logger:   logger,
	}
}

// Publish serializes the message to JSON and sends it. The sub_status is also
// attached as a message attribute so consumers can filter without decoding the
// body.
func (p *TransitionProducer) Publish(ctx context.Context, msg types.TransitionMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal TransitionMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"sub_status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.SubStatus)),
			},
		},
	}

	_, err = p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("queue: failed to send TransitionMessage to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "transition message sent",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"event_id", msg.EventID,
		"category", string(msg.Category),
		"sub_status", string(msg.SubStatus),
	)

	return nil
}
