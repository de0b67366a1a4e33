package tracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// ConsumerOptions tunes the SQS long poll.
type ConsumerOptions struct {
	MaxMessages       int32
	WaitSeconds       int32
	VisibilitySeconds int32
	RetryDelay        time.Duration
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.MaxMessages <= 0 || o.MaxMessages > 10 {
		o.MaxMessages = 10
	}
	if o.WaitSeconds <= 0 {
		o.WaitSeconds = 20
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	return o
}

// Consumer drains the tracking queue into a Recorder. Messages that fail to
// record stay on the queue and are retried after their visibility timeout;
// malformed messages are deleted.
type Consumer struct {
	client   SQSAPI
	queueURL string
	recorder *Recorder
	opts     ConsumerOptions
	log      *logger.Logger
}

func NewConsumer(client SQSAPI, queueURL string, recorder *Recorder, opts ConsumerOptions) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		recorder: recorder,
		opts:     opts.withDefaults(),
		log:      logger.With("component", "tracking-consumer"),
	}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("tracking consumer started", "queue", c.queueURL)
	defer c.log.Info("tracking consumer stopped")

	for ctx.Err() == nil {
		if _, err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("sqs receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.opts.RetryDelay):
			}
		}
	}
}

// PollOnce receives one batch and returns how many messages were recorded.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: c.opts.MaxMessages,
		WaitTimeSeconds:     c.opts.WaitSeconds,
	}
	if c.opts.VisibilitySeconds > 0 {
		in.VisibilityTimeout = c.opts.VisibilitySeconds
	}
	out, err := c.client.ReceiveMessage(ctx, in)
	if err != nil {
		return 0, err
	}

	recorded := 0
	for _, msg := range out.Messages {
		var evt TrackingEvent
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil {
			c.log.Warn("dropping malformed tracking message", "error", err)
			c.deleteMessage(ctx, msg.ReceiptHandle)
			continue
		}

		err := c.recorder.Record(evt)
		metrics.IncTracking("consume", err)
		if err != nil {
			c.log.Error("tracking record failed", "kind", string(evt.Kind), "campaign_id", evt.CampaignID, "error", err)
			continue
		}
		c.deleteMessage(ctx, msg.ReceiptHandle)
		recorded++
	}
	return recorded, nil
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	})
	if err != nil {
		c.log.Warn("sqs delete failed", "error", err)
	}
}
