package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

// ErrProducerClosed is returned once Close has been called.
var ErrProducerClosed = errors.New(errors.ErrCodeMessageQueueError, "kafka producer is closed")

// Writer abstracts kafka.Writer so tests can capture messages.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer enqueues assessment requests and publishes domain events.  It
// implements both the application layer's Queue and Publisher ports.
type Producer struct {
	writer Writer
	log    logging.Logger
	closed atomic.Bool

	sent   atomic.Int64
	failed atomic.Int64
}

// NewProducer builds a producer on a shared writer; the topic is set per
// message.  RequireOne keeps latency low while still surfacing broker loss.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers must not be empty")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	retries := cfg.ProducerRetries
	if retries <= 0 {
		retries = 3
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Balancer:     &kafkago.Hash{},
		MaxAttempts:  retries,
		BatchSize:    batch,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafkago.RequireOne,
		Async:        false,
	}
	return &Producer{writer: w, log: log}, nil
}

// NewProducerWithWriter wires an explicit writer, for tests.
func NewProducerWithWriter(w Writer, log logging.Logger) *Producer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Producer{writer: w, log: log}
}

// EnqueueAssessment publishes a request on the assess or reassess topic,
// keyed by report ID.
func (p *Producer) EnqueueAssessment(ctx context.Context, reportID common.ID, reassess bool) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	topic := RequestTopic(reassess)
	env, err := newEnvelope(topic, AssessRequestPayload{
		ReportID:    reportID,
		Reassess:    reassess,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := p.write(ctx, topic, string(reportID), env); err != nil {
		return err
	}
	p.log.Info("assessment request enqueued",
		logging.String("report_id", string(reportID)),
		logging.String("topic", topic),
		logging.Bool("reassess", reassess),
	)
	return nil
}

// Publish writes each domain event to the events topic, keyed by aggregate
// ID.  The caller treats publishing as best-effort; the first write failure
// aborts the batch.
func (p *Producer) Publish(ctx context.Context, events []common.DomainEvent) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	for _, ev := range events {
		rawEvent, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode domain event")
		}
		env, err := newEnvelope(ev.EventType(), EventPayload{
			AggregateID: ev.AggregateID(),
			OccurredAt:  ev.OccurredAt(),
			Event:       rawEvent,
		})
		if err != nil {
			return err
		}
		if err := p.write(ctx, TopicEvents, ev.AggregateID(), env); err != nil {
			return err
		}
	}
	return nil
}

// DeadLetter copies an undeliverable message, plus the failure reason, onto
// the request topic's DLQ.
func (p *Producer) DeadLetter(ctx context.Context, topic, suffix string, msg kafkago.Message, reason string) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	dlq := DeadLetterTopic(topic, suffix)
	headers := append(msg.Headers, kafkago.Header{Key: "x-dead-letter-reason", Value: []byte(reason)})
	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Topic:   dlq,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to dead-letter message")
	}
	p.sent.Add(1)
	p.log.Warn("message dead-lettered",
		logging.String("topic", dlq),
		logging.String("key", string(msg.Key)),
		logging.String("reason", reason),
	)
	return nil
}

func (p *Producer) write(ctx context.Context, topic, key string, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode message envelope")
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: raw,
	})
	if err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeMessageQueueError, "failed to write kafka message")
	}
	p.sent.Add(1)
	return nil
}

// Sent reports the number of successfully written messages.
func (p *Producer) Sent() int64 { return p.sent.Load() }

// Failed reports the number of write failures.
func (p *Producer) Failed() int64 { return p.failed.Load() }

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
