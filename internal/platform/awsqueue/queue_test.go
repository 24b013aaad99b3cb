package awsqueue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/mindlog/session-worker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSQS implements API for tests.
type fakeSQS struct {
	getQueueUrlErr error
	created        []*sqs.CreateQueueInput
	received       *sqs.ReceiveMessageInput
	deleted        []*sqs.DeleteMessageInput
	messages       []types.Message
}

func (f *fakeSQS) GetQueueUrl(
	ctx context.Context, params *sqs.GetQueueUrlInput, _ ...func(*sqs.Options),
) (*sqs.GetQueueUrlOutput, error) {
	if f.getQueueUrlErr != nil {
		return nil, f.getQueueUrlErr
	}
	return &sqs.GetQueueUrlOutput{
		QueueUrl: aws.String("https://sqs.test/" + aws.ToString(params.QueueName)),
	}, nil
}

func (f *fakeSQS) CreateQueue(
	ctx context.Context, params *sqs.CreateQueueInput, _ ...func(*sqs.Options),
) (*sqs.CreateQueueOutput, error) {
	f.created = append(f.created, params)
	return &sqs.CreateQueueOutput{
		QueueUrl: aws.String("https://sqs.test/" + aws.ToString(params.QueueName)),
	}, nil
}

func (f *fakeSQS) GetQueueAttributes(
	ctx context.Context, params *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options),
) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(types.QueueAttributeNameQueueArn): "arn:aws:sqs:test:dlq",
		},
	}, nil
}

func (f *fakeSQS) ReceiveMessage(
	ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options),
) (*sqs.ReceiveMessageOutput, error) {
	f.received = params
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(
	ctx context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options),
) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, params)
	return &sqs.DeleteMessageOutput{}, nil
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		Name:                     "tasks",
		WaitTimeSeconds:          20,
		VisibilityTimeoutSeconds: 60,
		MaxMessages:              10,
		MaxReceiveCount:          5,
	}
}

func TestEnsureExistingQueue(t *testing.T) {
	fake := &fakeSQS{}
	c := New(fake, testQueueConfig(), nil)

	require.NoError(t, c.Ensure(context.Background()))
	assert.Empty(t, fake.created, "existing queue must not be recreated")
	assert.Equal(t, "https://sqs.test/tasks", c.queueURL)
}

func TestEnsureCreatesQueueWithDeadLetter(t *testing.T) {
	fake := &fakeSQS{getQueueUrlErr: &types.QueueDoesNotExist{}}
	c := New(fake, testQueueConfig(), nil)

	require.NoError(t, c.Ensure(context.Background()))
	require.Len(t, fake.created, 2)

	assert.Equal(t, "tasks-dlq", aws.ToString(fake.created[0].QueueName))
	assert.Equal(t, "tasks", aws.ToString(fake.created[1].QueueName))

	policy := fake.created[1].Attributes[string(types.QueueAttributeNameRedrivePolicy)]
	var redrive map[string]string
	require.NoError(t, json.Unmarshal([]byte(policy), &redrive))
	assert.Equal(t, "arn:aws:sqs:test:dlq", redrive["deadLetterTargetArn"])
	assert.Equal(t, "5", redrive["maxReceiveCount"])
}

func TestReceiveRequiresEnsure(t *testing.T) {
	c := New(&fakeSQS{}, testQueueConfig(), nil)

	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestReceiveMapsMessages(t *testing.T) {
	fake := &fakeSQS{
		messages: []types.Message{
			{
				MessageId:     aws.String("m-1"),
				ReceiptHandle: aws.String("rh-1"),
				Body:          aws.String(`{"operation":"audio:transcribe"}`),
			},
		},
	}
	c := New(fake, testQueueConfig(), nil)
	require.NoError(t, c.Ensure(context.Background()))

	msgs, err := c.Receive(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m-1", msgs[0].ID)
	assert.Equal(t, "rh-1", msgs[0].ReceiptHandle)
	assert.JSONEq(t, `{"operation":"audio:transcribe"}`, string(msgs[0].Body))

	assert.Equal(t, int32(10), fake.received.MaxNumberOfMessages)
	assert.Equal(t, int32(20), fake.received.WaitTimeSeconds)
	assert.Equal(t, int32(60), fake.received.VisibilityTimeout)
}

func TestDeleteUsesReceiptHandle(t *testing.T) {
	fake := &fakeSQS{}
	c := New(fake, testQueueConfig(), nil)
	require.NoError(t, c.Ensure(context.Background()))

	require.NoError(t, c.Delete(context.Background(), "rh-42"))
	require.Len(t, fake.deleted, 1)
	assert.Equal(t, "rh-42", aws.ToString(fake.deleted[0].ReceiptHandle))
}
