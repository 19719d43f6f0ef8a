package report

import (
	"context"
	"time"

	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// ListFilter narrows report listings.
type ListFilter struct {
	AnalystID common.AnalystID
	Status    rtypes.ReportStatus
	Ticker    string
}

// Repository is the persistence port of the Report aggregate.  Implementations
// live in internal/infrastructure/database; the in-memory implementation in
// internal/testutil backs unit tests.
type Repository interface {
	// Save persists a new report.  Returns ErrCodeReportAlreadyExists when the
	// ID is already taken.
	Save(ctx context.Context, r *Report) error

	// Update persists a mutated aggregate using optimistic locking on
	// BaseEntity.Version.  Returns ErrCodeConflict on a lost update.
	Update(ctx context.Context, r *Report) error

	// FindByID returns the report or ErrCodeReportNotFound.
	FindByID(ctx context.Context, id common.ID) (*Report, error)

	// List returns reports matching the filter, newest first.
	List(ctx context.Context, filter ListFilter, page common.Pagination) ([]*Report, int64, error)
}

// AssessmentRepository is the persistence port for assessment runs.  Rows are
// append-only; there is no update operation.
type AssessmentRepository interface {
	// Save persists a completed assessment run.
	Save(ctx context.Context, a *Assessment) error

	// FindLatest returns the highest-version assessment of the report, or
	// ErrCodeAssessmentNotFound when none exists.
	FindLatest(ctx context.Context, reportID common.ID) (*Assessment, error)

	// FindByVersion returns one specific assessment run.
	FindByVersion(ctx context.Context, reportID common.ID, version int) (*Assessment, error)

	// History returns every assessment of the report in ascending version
	// order.
	History(ctx context.Context, reportID common.ID) ([]*Assessment, error)
}

// SimilarityMatchRepository persists above-threshold report pairs.  The pair
// (ReportID, OtherReportID) is stored once, in canonical lexicographic order.
type SimilarityMatchRepository interface {
	// SaveAll upserts the matches of one assessment run.
	SaveAll(ctx context.Context, matches []rtypes.SimilarityMatchDTO) error

	// FindByReport returns all matches in which the report participates, on
	// either side of the canonical pair.
	FindByReport(ctx context.Context, reportID common.ID) ([]rtypes.SimilarityMatchDTO, error)

	// FindBetween returns the match between two specific reports, if any.
	FindBetween(ctx context.Context, a, b common.ID) (*rtypes.SimilarityMatchDTO, error)

	// ArchiveOlderThan flags matches detected before the cutoff as archived
	// and returns the number of rows affected.  Archived pairs no longer
	// appear in FindByReport/FindBetween but stay on record; a re-detected
	// pair saved through SaveAll becomes live again.  Run periodically from
	// the worker.
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
