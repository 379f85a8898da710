package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/logging"
)

const (
	DefaultMaxMessages   = 10
	DefaultWaitTime      = 10 * time.Second
	DefaultMaxEmptyPolls = 10
	// MaxVisibilityTimeout is the longest hold SQS accepts on a received message.
	MaxVisibilityTimeout = 12 * time.Hour
)

// SQSAPI is the subset of the SQS client used by the queue source.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type QueueOptions struct {
	URL               string
	MaxMessages       int32
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	MaxEmptyPolls     int
	Logger            *zap.Logger
}

func (o *QueueOptions) applyDefaults() {
	if o.MaxMessages <= 0 || o.MaxMessages > 10 {
		o.MaxMessages = DefaultMaxMessages
	}
	if o.WaitTime <= 0 {
		o.WaitTime = DefaultWaitTime
	}
	if o.MaxEmptyPolls <= 0 {
		o.MaxEmptyPolls = DefaultMaxEmptyPolls
	}
	if o.VisibilityTimeout > MaxVisibilityTimeout {
		o.VisibilityTimeout = MaxVisibilityTimeout
	}
}

// Queue long-polls SQS and yields one task per message carrying a dataset identifier.
// Messages stay on the queue until Task.Ack deletes them, so anything not acknowledged
// becomes visible again after the visibility timeout.
type Queue struct {
	client     SQSAPI
	opts       QueueOptions
	buffer     []types.Message
	emptyPolls int
	polls      int
	logger     *zap.Logger
}

func NewQueue(client SQSAPI, opts QueueOptions) *Queue {
	opts.applyDefaults()
	return &Queue{
		client: client,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("queue"),
	}
}

// Polls reports how many receive calls have been made.
func (q *Queue) Polls() int {
	return q.polls
}

func (q *Queue) Next(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}

		for len(q.buffer) > 0 {
			msg := q.buffer[0]
			q.buffer = q.buffer[1:]

			body := aws.ToString(msg.Body)
			id, ok := ExtractDatasetID(body)
			if !ok {
				q.logger.Warn("deleting message without a dataset identifier",
					zap.String("message_id", aws.ToString(msg.MessageId)),
					zap.Int("body_length", len(body)),
				)
				// Left on the queue it would reappear and reset the empty-poll count.
				if err := q.deleter(msg.ReceiptHandle)(ctx); err != nil {
					q.logger.Warn("failed to delete malformed message", zap.Error(err))
				}
				continue
			}
			return Task{DatasetID: id, ack: q.deleter(msg.ReceiptHandle)}, nil
		}

		if q.emptyPolls >= q.opts.MaxEmptyPolls {
			q.logger.Info("no messages after consecutive empty polls, stopping",
				zap.Int("empty_polls", q.emptyPolls),
			)
			return Task{}, io.EOF
		}

		if err := q.poll(ctx); err != nil {
			return Task{}, err
		}
	}
}

func (q *Queue) poll(ctx context.Context) error {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.opts.URL),
		MaxNumberOfMessages: q.opts.MaxMessages,
		WaitTimeSeconds:     int32(q.opts.WaitTime / time.Second),
	}
	if q.opts.VisibilityTimeout > 0 {
		input.VisibilityTimeout = int32(q.opts.VisibilityTimeout / time.Second)
	}

	q.polls++
	out, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("%w: failed to receive from %s: %v", ErrSourceUnavailable, q.opts.URL, err)
	}
	if len(out.Messages) == 0 {
		q.emptyPolls++
		q.logger.Info("no messages found in the queue",
			zap.Int("attempt", q.emptyPolls),
			zap.Int("max_attempts", q.opts.MaxEmptyPolls),
		)
		return nil
	}
	q.emptyPolls = 0
	q.buffer = append(q.buffer, out.Messages...)
	return nil
}

func (q *Queue) deleter(receipt *string) func(context.Context) error {
	handle := aws.ToString(receipt)
	return func(ctx context.Context) error {
		_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.opts.URL),
			ReceiptHandle: aws.String(handle),
		})
		if err != nil {
			return fmt.Errorf("failed to delete message from %s: %w", q.opts.URL, err)
		}
		return nil
	}
}

func (q *Queue) Close() error { return nil }

// Submit enqueues a bare dataset identifier and returns the message id.
func Submit(ctx context.Context, client SQSAPI, queueURL, datasetID string) (string, error) {
	id, ok := ExtractDatasetID(datasetID)
	if !ok {
		return "", fmt.Errorf("%q is not a dataset uuid", datasetID)
	}
	out, err := client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit message to %s: %w", queueURL, err)
	}
	return aws.ToString(out.MessageId), nil
}
