// Package awsqueue wraps the SQS operations the worker uses: idempotent
// queue creation with a paired dead-letter queue, long-poll receive, and
// per-message deletion by receipt handle.
package awsqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/mindlog/session-worker/internal/config"
)

// API is the subset of the SQS client this package uses. Declared
// locally so tests can substitute a fake.
type API interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is one received queue message. The receipt handle is the only
// valid key for deleting the message; it changes on every redelivery.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          []byte
}

// ErrNotReady is returned when Receive is called before Ensure has
// resolved the queue URL.
var ErrNotReady = errors.New("queue URL not resolved, call Ensure first")

// Client is a thin wrapper over SQS bound to one named queue.
type Client struct {
	api API
	cfg config.QueueConfig
	log *slog.Logger

	queueURL string
}

// New creates a queue client. Ensure must be called before the first
// Receive.
func New(api API, cfg config.QueueConfig, log *slog.Logger) *Client {
	if api == nil {
		panic("sqs api cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		api: api,
		cfg: cfg,
		log: log.With(slog.String("component", "queue")),
	}
}

// Ensure resolves the queue URL, creating the queue and its paired
// dead-letter queue if they do not exist. Safe to call repeatedly.
func (c *Client) Ensure(ctx context.Context) error {
	out, err := c.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(c.cfg.Name),
	})
	if err == nil {
		c.queueURL = aws.ToString(out.QueueUrl)
		return nil
	}

	var notExist *types.QueueDoesNotExist
	if !errors.As(err, &notExist) {
		return fmt.Errorf("failed to look up queue %q: %w", c.cfg.Name, err)
	}

	url, err := c.createWithDeadLetter(ctx)
	if err != nil {
		return err
	}
	c.queueURL = url

	c.log.Info("queue created",
		slog.String("queue", c.cfg.Name),
		slog.Int("max_receive_count", c.cfg.MaxReceiveCount))
	return nil
}

// createWithDeadLetter creates the DLQ first, then the main queue with a
// redrive policy pointing at it.
func (c *Client) createWithDeadLetter(ctx context.Context) (string, error) {
	dlqName := c.cfg.Name + "-dlq"

	dlq, err := c.api.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(dlqName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create dead-letter queue %q: %w", dlqName, err)
	}

	attrs, err := c.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       dlq.QueueUrl,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get dead-letter queue ARN: %w", err)
	}
	dlqArn := attrs.Attributes[string(types.QueueAttributeNameQueueArn)]

	redrive, err := json.Marshal(map[string]string{
		"deadLetterTargetArn": dlqArn,
		"maxReceiveCount":     strconv.Itoa(c.cfg.MaxReceiveCount),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal redrive policy: %w", err)
	}

	out, err := c.api.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(c.cfg.Name),
		Attributes: map[string]string{
			string(types.QueueAttributeNameRedrivePolicy): string(redrive),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create queue %q: %w", c.cfg.Name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

// Receive long-polls the queue once and returns the received batch,
// which may be empty.
func (c *Client) Receive(ctx context.Context) ([]Message, error) {
	if c.queueURL == "" {
		return nil, ErrNotReady
	}

	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
		VisibilityTimeout:   c.cfg.VisibilityTimeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          []byte(aws.ToString(m.Body)),
		})
	}
	return msgs, nil
}

// Delete removes a message from the queue by its receipt handle. Not
// deleting a message is the retry mechanism: it becomes redeliverable
// once its visibility timeout expires.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	if c.queueURL == "" {
		return ErrNotReady
	}

	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
