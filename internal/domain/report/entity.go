// Package report implements the research-report bounded context: the Report
// aggregate root, its assessment lifecycle state machine, the Assessment
// entity, domain events, and repository ports.  All business rules concerning
// reports live here; persistence and messaging are handled by adapters in the
// infrastructure layer.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// allowedTransitions defines the valid next states reachable from each status.
// Transitions not listed are illegal and will be rejected.
//
//	Submitted ──► Assessing ──► Assessed ──► Reassessing ──► Assessed
//	     │             │            │              │
//	     └─────────────┴────────────┴──────────────┴──► Retracted
//	                                │
//	                                └──► Archived
var allowedTransitions = map[rtypes.ReportStatus][]rtypes.ReportStatus{
	rtypes.StatusSubmitted: {
		rtypes.StatusAssessing,
		rtypes.StatusRetracted,
	},
	rtypes.StatusAssessing: {
		rtypes.StatusAssessed,
		rtypes.StatusRetracted,
	},
	rtypes.StatusAssessed: {
		rtypes.StatusReassessing,
		rtypes.StatusArchived,
		rtypes.StatusRetracted,
	},
	rtypes.StatusReassessing: {
		rtypes.StatusAssessed,
		rtypes.StatusRetracted,
	},
	// Terminal states: no outgoing transitions.
	rtypes.StatusArchived:  {},
	rtypes.StatusRetracted: {},
}

// minWordCount is the smallest report accepted for assessment.  Shorter texts
// carry too little signal for similarity and authorship analysis.
const minWordCount = 50

// Report is the aggregate root of the research-report bounded context.  Text
// holds the normalised document body; Tickers and Regions are the entities
// extracted during ingestion.
//
// Consumers must never modify fields directly; all mutations go through the
// exported methods so that lifecycle invariants and domain events are
// correctly maintained.
type Report struct {
	common.BaseEntity

	Title     string
	AnalystID common.AnalystID
	Text      string
	Tickers   []string
	Regions   []string
	WordCount int
	Status    rtypes.ReportStatus

	// latestAssessmentVersion is the version number of the most recent
	// completed assessment, 0 when none has completed yet.
	latestAssessmentVersion int

	events []common.DomainEvent
}

// NewReport creates a Report aggregate from already-normalised ingestion
// output, enforcing construction invariants:
//   - title and analyst must be non-empty,
//   - the normalised text must contain at least minWordCount words.
//
// On success the report starts in StatusSubmitted and a ReportSubmitted
// domain event is recorded.
func NewReport(title string, analystID common.AnalystID, text string, tickers, regions []string) (*Report, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.Validation("report title must not be empty")
	}
	if analystID == "" {
		return nil, errors.Validation("analyst ID must not be empty")
	}
	wordCount := len(strings.Fields(text))
	if wordCount < minWordCount {
		return nil, errors.Validation(
			fmt.Sprintf("report text must contain at least %d words, got %d", minWordCount, wordCount))
	}

	now := time.Now().UTC()
	r := &Report{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		Title:     strings.TrimSpace(title),
		AnalystID: analystID,
		Text:      text,
		Tickers:   tickers,
		Regions:   regions,
		WordCount: wordCount,
		Status:    rtypes.StatusSubmitted,
	}

	r.recordEvent(NewReportSubmittedEvent(r.ID, r.AnalystID, r.Tickers))
	return r, nil
}

// transition moves the report to the target status after checking the state
// machine.  Callers are the exported lifecycle methods below.
func (r *Report) transition(target rtypes.ReportStatus) error {
	allowed, ok := allowedTransitions[r.Status]
	if !ok {
		return errors.New(errors.ErrCodeReportStateInvalid,
			fmt.Sprintf("unknown current status %q for report %s", r.Status, r.ID))
	}
	for _, s := range allowed {
		if s == target {
			r.Status = target
			r.touch()
			return nil
		}
	}
	return errors.New(errors.ErrCodeReportStateInvalid,
		fmt.Sprintf("illegal status transition %q to %q for report %s", r.Status, target, r.ID))
}

// BeginAssessment moves the report into its assessing state: StatusAssessing
// for a first run, StatusReassessing when a completed assessment already
// exists.  An AssessmentStarted event is recorded on success.
func (r *Report) BeginAssessment() error {
	target := rtypes.StatusAssessing
	if r.Status == rtypes.StatusAssessed {
		target = rtypes.StatusReassessing
	}
	if err := r.transition(target); err != nil {
		return err
	}
	r.recordEvent(NewAssessmentStartedEvent(r.ID, r.latestAssessmentVersion+1))
	return nil
}

// CompleteAssessment records that assessment run assessmentVersion finished
// and moves the report to StatusAssessed.  The version must be exactly one
// greater than the latest completed version; reassessments never overwrite
// earlier results.
func (r *Report) CompleteAssessment(assessmentVersion int) error {
	if assessmentVersion != r.latestAssessmentVersion+1 {
		return errors.New(errors.ErrCodeReportStateInvalid,
			fmt.Sprintf("assessment version %d is not the successor of %d for report %s",
				assessmentVersion, r.latestAssessmentVersion, r.ID))
	}
	if err := r.transition(rtypes.StatusAssessed); err != nil {
		return err
	}
	r.latestAssessmentVersion = assessmentVersion
	r.recordEvent(NewAssessmentCompletedEvent(r.ID, assessmentVersion))
	return nil
}

// Retract withdraws the report.  Retraction is allowed from every
// non-terminal state; an in-flight assessment observes the status change and
// discards its results before persisting.
func (r *Report) Retract(reason string) error {
	if err := r.transition(rtypes.StatusRetracted); err != nil {
		return err
	}
	r.recordEvent(NewReportRetractedEvent(r.ID, reason))
	return nil
}

// Archive moves an assessed report into the terminal archived state.  Its
// embedding stays in the similarity index so future submissions can still
// match against it.
func (r *Report) Archive() error {
	if err := r.transition(rtypes.StatusArchived); err != nil {
		return err
	}
	r.recordEvent(NewReportArchivedEvent(r.ID))
	return nil
}

// LatestAssessmentVersion returns the version of the most recent completed
// assessment, 0 when none has completed.
func (r *Report) LatestAssessmentVersion() int {
	return r.latestAssessmentVersion
}

// IsTerminal reports whether the report is in a state with no outgoing
// transitions.
func (r *Report) IsTerminal() bool {
	return len(allowedTransitions[r.Status]) == 0
}

// Events returns the domain events accumulated since the last call and clears
// the internal buffer.  Application services publish these after the unit of
// work commits.
func (r *Report) Events() []common.DomainEvent {
	evts := r.events
	r.events = nil
	return evts
}

func (r *Report) recordEvent(evt common.DomainEvent) {
	r.events = append(r.events, evt)
}

// touch updates UpdatedAt and bumps the optimistic-lock Version.
func (r *Report) touch() {
	r.UpdatedAt = time.Now().UTC()
	r.Version++
}

// ToDTO converts the aggregate to its transport representation.  The report
// text is included; callers that list reports should blank it to keep
// payloads small.
func (r *Report) ToDTO() rtypes.ReportDTO {
	return rtypes.ReportDTO{
		BaseEntity: r.BaseEntity,
		Title:      r.Title,
		AnalystID:  r.AnalystID,
		Text:       r.Text,
		Tickers:    r.Tickers,
		Regions:    r.Regions,
		WordCount:  r.WordCount,
		Status:     r.Status,
	}
}

// FromDTO reconstructs a Report aggregate from its DTO together with the
// latest completed assessment version.  Used exclusively by repositories to
// rehydrate persisted entities; it bypasses factory invariants because the
// data was validated at write time.  No events are emitted.
func FromDTO(dto rtypes.ReportDTO, latestAssessmentVersion int) *Report {
	return &Report{
		BaseEntity:              dto.BaseEntity,
		Title:                   dto.Title,
		AnalystID:               dto.AnalystID,
		Text:                    dto.Text,
		Tickers:                 dto.Tickers,
		Regions:                 dto.Regions,
		WordCount:               dto.WordCount,
		Status:                  dto.Status,
		latestAssessmentVersion: latestAssessmentVersion,
	}
}
