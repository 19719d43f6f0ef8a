// Package kafka implements the asynchronous assessment pipeline: a producer
// that enqueues assessment requests and publishes domain events, and a
// consumer that drives the application service from the request topics.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

const (
	// TopicAssessRequest carries first-time assessment requests.
	TopicAssessRequest = "report.assess.request"
	// TopicReassessRequest carries reassessment requests for already
	// assessed reports.
	TopicReassessRequest = "report.reassess.request"
	// TopicEvents carries all domain events, keyed by report ID so a
	// report's events stay ordered within a partition.
	TopicEvents = "assessment.events"

	// DefaultDLQSuffix is appended to a request topic to form its
	// dead-letter topic when none is configured.
	DefaultDLQSuffix = ".dlq"

	envelopeSchemaVersion = "1"
	envelopeSource        = "equitylens"
)

// Envelope is the wire format shared by every message the engine produces.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// AssessRequestPayload is the payload of both request topics.
type AssessRequestPayload struct {
	ReportID    common.ID `json:"report_id"`
	Reassess    bool      `json:"reassess"`
	RequestedAt time.Time `json:"requested_at"`
}

// EventPayload wraps a domain event for the events topic.  The aggregate ID
// doubles as the message key.
type EventPayload struct {
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Event       json.RawMessage `json:"event"`
}

func newEnvelope(eventType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode message payload")
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        envelopeSource,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: envelopeSchemaVersion,
		Payload:       raw,
	}, nil
}

// DecodeEnvelope parses a raw message body.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed message envelope")
	}
	if env.EventType == "" {
		return Envelope{}, errors.New(errors.ErrCodeBadRequest, "message envelope missing event_type")
	}
	return env, nil
}

// DecodeAssessRequest parses the payload of a request-topic envelope.
func DecodeAssessRequest(env Envelope) (AssessRequestPayload, error) {
	var p AssessRequestPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed assessment request payload")
	}
	if p.ReportID == "" {
		return p, errors.New(errors.ErrCodeBadRequest, "assessment request missing report_id")
	}
	return p, nil
}

// RequestTopic returns the topic an assessment request belongs on.
func RequestTopic(reassess bool) string {
	if reassess {
		return TopicReassessRequest
	}
	return TopicAssessRequest
}

// DeadLetterTopic derives the DLQ topic for a request topic.
func DeadLetterTopic(topic, suffix string) string {
	if suffix == "" {
		suffix = DefaultDLQSuffix
	}
	return topic + suffix
}
