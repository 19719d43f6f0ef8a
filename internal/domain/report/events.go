package report

import (
	"github.com/turtacn/EquityLens/pkg/types/common"
)

// Event type identifiers, used as Kafka message keys and for consumer routing.
const (
	EventTypeReportSubmitted     = "report.submitted"
	EventTypeAssessmentStarted   = "assessment.started"
	EventTypeAssessmentCompleted = "assessment.completed"
	EventTypeReportRetracted     = "report.retracted"
	EventTypeReportArchived      = "report.archived"
)

// ReportSubmittedEvent fires when a report passes ingestion and enters the
// lifecycle.
type ReportSubmittedEvent struct {
	common.BaseEvent
	AnalystID common.AnalystID `json:"analyst_id"`
	Tickers   []string         `json:"tickers,omitempty"`
}

func NewReportSubmittedEvent(reportID common.ID, analystID common.AnalystID, tickers []string) ReportSubmittedEvent {
	return ReportSubmittedEvent{
		BaseEvent: common.NewBaseEvent(EventTypeReportSubmitted, string(reportID)),
		AnalystID: analystID,
		Tickers:   tickers,
	}
}

// AssessmentStartedEvent fires when an assessment run begins.
type AssessmentStartedEvent struct {
	common.BaseEvent
	AssessmentVersion int `json:"assessment_version"`
}

func NewAssessmentStartedEvent(reportID common.ID, version int) AssessmentStartedEvent {
	return AssessmentStartedEvent{
		BaseEvent:         common.NewBaseEvent(EventTypeAssessmentStarted, string(reportID)),
		AssessmentVersion: version,
	}
}

// AssessmentCompletedEvent fires after an assessment has been persisted.
// Downstream consumers (notification fan-out, dashboards) subscribe to it.
type AssessmentCompletedEvent struct {
	common.BaseEvent
	AssessmentVersion int `json:"assessment_version"`
}

func NewAssessmentCompletedEvent(reportID common.ID, version int) AssessmentCompletedEvent {
	return AssessmentCompletedEvent{
		BaseEvent:         common.NewBaseEvent(EventTypeAssessmentCompleted, string(reportID)),
		AssessmentVersion: version,
	}
}

// ReportRetractedEvent fires when a report is withdrawn.  In-flight
// assessment runs observe it and discard their results.
type ReportRetractedEvent struct {
	common.BaseEvent
	Reason string `json:"reason,omitempty"`
}

func NewReportRetractedEvent(reportID common.ID, reason string) ReportRetractedEvent {
	return ReportRetractedEvent{
		BaseEvent: common.NewBaseEvent(EventTypeReportRetracted, string(reportID)),
		Reason:    reason,
	}
}

// ReportArchivedEvent fires when an assessed report enters the terminal
// archived state.
type ReportArchivedEvent struct {
	common.BaseEvent
}

func NewReportArchivedEvent(reportID common.ID) ReportArchivedEvent {
	return ReportArchivedEvent{
		BaseEvent: common.NewBaseEvent(EventTypeReportArchived, string(reportID)),
	}
}
