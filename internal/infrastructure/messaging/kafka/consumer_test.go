package kafka

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

// scriptedReader replays a fixed message sequence, then fails the next fetch
// with io.EOF so Run terminates deterministically.
type scriptedReader struct {
	msgs      []kafkago.Message
	idx       int
	committed []kafkago.Message
}

func (r *scriptedReader) FetchMessage(_ context.Context) (kafkago.Message, error) {
	if r.idx >= len(r.msgs) {
		return kafkago.Message{}, io.EOF
	}
	m := r.msgs[r.idx]
	r.idx++
	return m, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *scriptedReader) Close() error { return nil }

type recordingDLQ struct {
	mu      sync.Mutex
	reasons []string
	topics  []string
}

func (d *recordingDLQ) DeadLetter(_ context.Context, topic, suffix string, _ kafkago.Message, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.topics = append(d.topics, DeadLetterTopic(topic, suffix))
	d.reasons = append(d.reasons, reason)
	return nil
}

func requestMessage(t *testing.T, reportID common.ID, reassess bool) kafkago.Message {
	t.Helper()
	env, err := newEnvelope(RequestTopic(reassess), AssessRequestPayload{
		ReportID:    reportID,
		Reassess:    reassess,
		RequestedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Topic: RequestTopic(reassess), Key: []byte(reportID), Value: raw}
}

func newTestConsumer(r Reader, handler AssessHandler, dlq DeadLetterer, maxRetries int) *Consumer {
	return NewConsumerWithReader(r, config.KafkaConfig{GroupID: "test"},
		config.WorkerConfig{MaxRetries: maxRetries, RetryBackoff: time.Millisecond},
		handler, dlq, logging.NewNopLogger())
}

func runToExhaustion(t *testing.T, c *Consumer) {
	t.Helper()
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessageQueueError))
}

func TestConsumer_InvokesHandlerAndCommits(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{
		requestMessage(t, "rpt-1", false),
		requestMessage(t, "rpt-2", true),
	}}

	var mu sync.Mutex
	var seen []string
	handler := func(_ context.Context, reportID common.ID, reassess bool) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(reportID))
		if reportID == "rpt-2" {
			assert.True(t, reassess)
		}
		return nil
	}

	c := newTestConsumer(reader, handler, &recordingDLQ{}, 2)
	runToExhaustion(t, c)

	assert.Equal(t, []string{"rpt-1", "rpt-2"}, seen)
	assert.Len(t, reader.committed, 2)
	assert.EqualValues(t, 2, c.Processed())
	assert.EqualValues(t, 0, c.DeadLettered())
}

func TestConsumer_MalformedMessageGoesToDLQ(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{
		{Topic: TopicAssessRequest, Value: []byte("not an envelope")},
	}}
	dlq := &recordingDLQ{}

	handler := func(context.Context, common.ID, bool) error {
		t.Fatal("handler must not run for malformed messages")
		return nil
	}

	c := newTestConsumer(reader, handler, dlq, 2)
	runToExhaustion(t, c)

	require.Len(t, dlq.topics, 1)
	assert.Equal(t, TopicAssessRequest+DefaultDLQSuffix, dlq.topics[0])
	assert.Len(t, reader.committed, 1)
}

func TestConsumer_RetriesTransientFailuresThenDeadLetters(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{requestMessage(t, "rpt-1", false)}}
	dlq := &recordingDLQ{}

	calls := 0
	handler := func(context.Context, common.ID, bool) error {
		calls++
		return errors.New(errors.ErrCodeExternalService, "embedding service down")
	}

	c := newTestConsumer(reader, handler, dlq, 2)
	runToExhaustion(t, c)

	assert.Equal(t, 3, calls)
	require.Len(t, dlq.reasons, 1)
	assert.Contains(t, dlq.reasons[0], "embedding service down")
	assert.EqualValues(t, 1, c.DeadLettered())
}

func TestConsumer_NonRetryableFailureSkipsRetry(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{requestMessage(t, "rpt-1", false)}}
	dlq := &recordingDLQ{}

	calls := 0
	handler := func(context.Context, common.ID, bool) error {
		calls++
		return errors.New(errors.ErrCodeReportStateInvalid, "report is archived")
	}

	c := newTestConsumer(reader, handler, dlq, 5)
	runToExhaustion(t, c)

	assert.Equal(t, 1, calls)
	assert.Len(t, dlq.reasons, 1)
}

func TestConsumer_RetractedRequestDroppedQuietly(t *testing.T) {
	reader := &scriptedReader{msgs: []kafkago.Message{requestMessage(t, "rpt-1", false)}}
	dlq := &recordingDLQ{}

	handler := func(context.Context, common.ID, bool) error {
		return errors.New(errors.ErrCodeReportRetracted, "report was retracted")
	}

	c := newTestConsumer(reader, handler, dlq, 5)
	runToExhaustion(t, c)

	assert.Empty(t, dlq.reasons)
	assert.EqualValues(t, 1, c.Processed())
	assert.Len(t, reader.committed, 1)
}
