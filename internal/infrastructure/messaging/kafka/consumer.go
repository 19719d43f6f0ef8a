package kafka

import (
	"context"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

// ErrConsumerRunning is returned when Run is called on a running consumer.
var ErrConsumerRunning = errors.New(errors.ErrCodeConflict, "consumer is already running")

// AssessHandler processes one assessment request.  The worker binary binds it
// to the application service's RunAssessment.
type AssessHandler func(ctx context.Context, reportID common.ID, reassess bool) error

// Reader abstracts kafka.Reader so tests can feed scripted messages.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// DeadLetterer is the slice of Producer the consumer needs for undeliverable
// messages.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, topic, suffix string, msg kafkago.Message, reason string) error
}

// Consumer drains the request topics and runs assessments through the
// handler.  Each message is retried with exponential backoff; messages that
// exhaust the budget, or fail in a way retrying cannot fix, go to the DLQ.
// Every fetched message is committed exactly once, whatever its outcome.
type Consumer struct {
	reader     Reader
	dlq        DeadLetterer
	handler    AssessHandler
	log        logging.Logger
	dlqSuffix  string
	maxRetries int
	backoff    time.Duration
	running    atomic.Bool

	processed    atomic.Int64
	deadLettered atomic.Int64
}

// NewConsumer builds a consumer-group reader over both request topics.
func NewConsumer(cfg config.KafkaConfig, worker config.WorkerConfig, handler AssessHandler, dlq DeadLetterer, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers must not be empty")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka group_id must not be empty")
	}
	if handler == nil {
		return nil, errors.New(errors.ErrCodeValidation, "assessment handler must not be nil")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	startOffset := kafkago.FirstOffset
	if cfg.AutoOffsetReset == "latest" {
		startOffset = kafkago.LastOffset
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{TopicAssessRequest, TopicReassessRequest},
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
	})
	return newConsumer(reader, cfg, worker, handler, dlq, log), nil
}

// NewConsumerWithReader wires an explicit reader, for tests.
func NewConsumerWithReader(r Reader, cfg config.KafkaConfig, worker config.WorkerConfig, handler AssessHandler, dlq DeadLetterer, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return newConsumer(r, cfg, worker, handler, dlq, log)
}

func newConsumer(r Reader, cfg config.KafkaConfig, worker config.WorkerConfig, handler AssessHandler, dlq DeadLetterer, log logging.Logger) *Consumer {
	maxRetries := worker.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := worker.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Consumer{
		reader:     r,
		dlq:        dlq,
		handler:    handler,
		log:        log,
		dlqSuffix:  cfg.DLQSuffix,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Run consumes until the context is cancelled.  It returns nil on clean
// shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrConsumerRunning
	}
	defer c.running.Store(false)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to fetch kafka message")
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to commit kafka message")
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafkago.Message) {
	req, err := c.decode(msg)
	if err != nil {
		c.deadLetter(ctx, msg, err.Error())
		return
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		lastErr = c.handler(ctx, req.ReportID, req.Reassess)
		if lastErr == nil {
			c.processed.Add(1)
			return
		}
		if !retryable(lastErr) {
			break
		}
		c.log.Warn("assessment attempt failed",
			logging.String("report_id", string(req.ReportID)),
			logging.Int("attempt", attempt+1),
			logging.Err(lastErr),
		)
	}

	// A report retracted or deleted while queued is a normal outcome, not a
	// delivery failure.
	if errors.IsCode(lastErr, errors.ErrCodeReportRetracted) ||
		errors.IsCode(lastErr, errors.ErrCodeReportNotFound) {
		c.log.Info("dropping assessment request",
			logging.String("report_id", string(req.ReportID)),
			logging.Err(lastErr),
		)
		c.processed.Add(1)
		return
	}
	c.deadLetter(ctx, msg, lastErr.Error())
}

func (c *Consumer) decode(msg kafkago.Message) (AssessRequestPayload, error) {
	env, err := DecodeEnvelope(msg.Value)
	if err != nil {
		return AssessRequestPayload{}, err
	}
	return DecodeAssessRequest(env)
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafkago.Message, reason string) {
	c.deadLettered.Add(1)
	if c.dlq == nil {
		c.log.Error("dropping undeliverable message, no dead-letter producer",
			logging.String("topic", msg.Topic),
			logging.String("reason", reason),
		)
		return
	}
	if err := c.dlq.DeadLetter(ctx, msg.Topic, c.dlqSuffix, msg, reason); err != nil {
		c.log.Error("failed to dead-letter message",
			logging.String("topic", msg.Topic),
			logging.Err(err),
		)
	}
}

// retryable reports whether a handler failure can succeed on a later attempt.
func retryable(err error) bool {
	for _, code := range []errors.ErrorCode{
		errors.ErrCodeValidation,
		errors.ErrCodeBadRequest,
		errors.ErrCodeReportStateInvalid,
		errors.ErrCodeReportRetracted,
		errors.ErrCodeReportNotFound,
	} {
		if errors.IsCode(err, code) {
			return false
		}
	}
	return true
}

// Processed reports how many requests completed, including dropped ones.
func (c *Consumer) Processed() int64 { return c.processed.Load() }

// DeadLettered reports how many messages were routed to the DLQ.
func (c *Consumer) DeadLettered() int64 { return c.deadLettered.Load() }

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
