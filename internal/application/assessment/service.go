// Package assessment is the application layer of the report-assessment
// engine.  The Service orchestrates the full lifecycle: submission and
// ingestion, the concurrent analyzer fan-out, versioned persistence of
// results, retrieval, comparison, reassessment and retraction.  Transport
// adapters (HTTP, CLI, the Kafka worker) call into it; it owns no transport
// concerns itself.
package assessment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/EquityLens/internal/analysis/ingest"
	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// maxCompareReports bounds the compare operation; the pair fan-out is
// quadratic in the request size.
const maxCompareReports = 10

// Queue is the async assessment pipeline.  The Kafka producer implements it;
// when no queue is configured the service runs assessments inline.
type Queue interface {
	EnqueueAssessment(ctx context.Context, reportID common.ID, reassess bool) error
}

// Publisher emits domain events after a unit of work commits.  Publishing is
// best-effort: failures are logged, never propagated to the caller.
type Publisher interface {
	Publish(ctx context.Context, events []common.DomainEvent) error
}

// LatestCache caches the most recent assessment per report.
type LatestCache interface {
	Get(ctx context.Context, reportID common.ID) (rtypes.AssessmentDTO, bool, error)
	Set(ctx context.Context, dto rtypes.AssessmentDTO) error
	Invalidate(ctx context.Context, reportID common.ID) error
}

// Narrator produces the human-readable assessment summary.  The LLM client
// implements it; on failure the service falls back to a templated narrative.
type Narrator interface {
	Narrate(ctx context.Context, a rtypes.AssessmentDTO) (string, error)
}

// SubmitInput is the submission payload.
type SubmitInput struct {
	Title     string
	AnalystID common.AnalystID
	Text      string
}

// Service is the application-level API of the assessment engine.
type Service interface {
	// SubmitReport ingests and persists a report.  With a queue configured the
	// assessment runs asynchronously and the returned report is in
	// StatusSubmitted; without one it runs inline.
	SubmitReport(ctx context.Context, input SubmitInput) (rtypes.ReportDTO, error)

	// RunAssessment executes one assessment run end to end.  Called by the
	// worker for queued requests and by SubmitReport/Reassess in inline mode.
	RunAssessment(ctx context.Context, reportID common.ID) (rtypes.AssessmentDTO, error)

	// GetReport returns the report aggregate's transport form.
	GetReport(ctx context.Context, reportID common.ID) (rtypes.ReportDTO, error)

	// ListReports returns reports matching the filter, newest first, with
	// text bodies blanked.
	ListReports(ctx context.Context, filter report.ListFilter, page common.Pagination) ([]rtypes.ReportDTO, int64, error)

	// GetAssessment returns one assessment run; version 0 means latest.  The
	// similarity section folds in the persisted match relation, so a pair
	// recorded by the counterpart report's run is visible from this side too.
	GetAssessment(ctx context.Context, reportID common.ID, version int) (rtypes.AssessmentDTO, error)

	// GetHistory returns every assessment of the report in version order.
	GetHistory(ctx context.Context, reportID common.ID) ([]rtypes.AssessmentDTO, error)

	// Compare builds the pairwise comparison matrix for 2..10 reports.
	Compare(ctx context.Context, reportIDs []common.ID) (rtypes.ComparisonDTO, error)

	// Reassess schedules (or runs) a fresh assessment version for an already
	// assessed report.
	Reassess(ctx context.Context, reportID common.ID) (rtypes.ReportDTO, error)

	// Retract withdraws a report.  An in-flight assessment discards its
	// results when it observes the retraction.
	Retract(ctx context.Context, reportID common.ID, reason string) error

	// Archive moves an assessed report to the terminal archived state.
	Archive(ctx context.Context, reportID common.ID) error
}

// Deps bundles the service collaborators.  Queue, Cache, Narrator and
// Publisher are optional.
type Deps struct {
	Reports     report.Repository
	Assessments report.AssessmentRepository
	Matches     report.SimilarityMatchRepository
	Normalizer  *ingest.Normalizer
	Runner      *Runner
	Queue       Queue
	Publisher   Publisher
	Cache       LatestCache
	Narrator    Narrator
	Logger      logging.Logger
}

type serviceImpl struct {
	deps Deps
}

// NewService validates mandatory collaborators and constructs the service.
func NewService(deps Deps) (Service, error) {
	if deps.Reports == nil || deps.Assessments == nil || deps.Matches == nil {
		return nil, errors.Internal("assessment service requires all three repositories")
	}
	if deps.Normalizer == nil || deps.Runner == nil {
		return nil, errors.Internal("assessment service requires the normalizer and the runner")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{deps: deps}, nil
}

func (s *serviceImpl) SubmitReport(ctx context.Context, input SubmitInput) (rtypes.ReportDTO, error) {
	doc, err := s.deps.Normalizer.Normalize(input.Text)
	if err != nil {
		return rtypes.ReportDTO{}, err
	}

	rpt, err := report.NewReport(input.Title, input.AnalystID, doc.Text, doc.Tickers, doc.Regions)
	if err != nil {
		return rtypes.ReportDTO{}, err
	}
	if err := s.deps.Reports.Save(ctx, rpt); err != nil {
		return rtypes.ReportDTO{}, err
	}
	s.publish(ctx, rpt.Events())

	s.deps.Logger.Info("report submitted",
		logging.String("report_id", string(rpt.ID)),
		logging.String("analyst_id", string(rpt.AnalystID)),
		logging.Int("word_count", rpt.WordCount),
		logging.Int("tickers", len(rpt.Tickers)),
	)

	if s.deps.Queue != nil {
		if err := s.deps.Queue.EnqueueAssessment(ctx, rpt.ID, false); err != nil {
			return rtypes.ReportDTO{}, errors.Wrap(err, errors.ErrCodeMessageQueueError,
				"failed to enqueue assessment request")
		}
		return rpt.ToDTO(), nil
	}

	if _, err := s.RunAssessment(ctx, rpt.ID); err != nil {
		return rtypes.ReportDTO{}, err
	}
	return s.GetReport(ctx, rpt.ID)
}

func (s *serviceImpl) RunAssessment(ctx context.Context, reportID common.ID) (rtypes.AssessmentDTO, error) {
	rpt, err := s.deps.Reports.FindByID(ctx, reportID)
	if err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	if err := rpt.BeginAssessment(); err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	// Persisting the assessing status is the concurrency gate: a second
	// starter loses the optimistic lock here.
	if err := s.deps.Reports.Update(ctx, rpt); err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	s.publish(ctx, rpt.Events())

	asmt, version, err := s.deps.Runner.Run(ctx, rpt)
	if err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	asmt.Narrative = s.narrate(ctx, asmt)

	// Re-read before persisting: a retraction that landed while the analyzers
	// were running wins, and the results are discarded.
	fresh, err := s.deps.Reports.FindByID(ctx, reportID)
	if err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	if fresh.Status == rtypes.StatusRetracted {
		s.deps.Logger.Info("assessment discarded, report retracted mid-run",
			logging.String("report_id", string(reportID)),
			logging.Int("version", version),
		)
		return rtypes.AssessmentDTO{}, errors.New(errors.ErrCodeReportRetracted,
			fmt.Sprintf("report %s was retracted during assessment", reportID))
	}

	if err := fresh.CompleteAssessment(version); err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	if err := s.deps.Reports.Update(ctx, fresh); err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	if err := s.deps.Assessments.Save(ctx, asmt); err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	if len(asmt.Similarity.Matches) > 0 {
		if err := s.deps.Matches.SaveAll(ctx, asmt.Similarity.Matches); err != nil {
			return rtypes.AssessmentDTO{}, err
		}
	}

	dto := asmt.ToDTO()
	s.cacheSet(ctx, dto)
	s.publish(ctx, fresh.Events())

	s.deps.Logger.Info("assessment completed",
		logging.String("report_id", string(reportID)),
		logging.Int("version", version),
		logging.Float64("overall_score", dto.OverallScore),
		logging.Int("degraded", dto.DegradedCount),
		logging.Bool("plagiarism_suspected", dto.Similarity.PlagiarismSuspected),
	)
	return dto, nil
}

func (s *serviceImpl) GetReport(ctx context.Context, reportID common.ID) (rtypes.ReportDTO, error) {
	rpt, err := s.deps.Reports.FindByID(ctx, reportID)
	if err != nil {
		return rtypes.ReportDTO{}, err
	}
	return rpt.ToDTO(), nil
}

func (s *serviceImpl) ListReports(ctx context.Context, filter report.ListFilter, page common.Pagination) ([]rtypes.ReportDTO, int64, error) {
	if page.Page == 0 {
		page.Page = 1
	}
	if page.PageSize == 0 {
		page.PageSize = 20
	}
	if err := page.Validate(); err != nil {
		return nil, 0, errors.Validation(err.Error())
	}

	reports, total, err := s.deps.Reports.List(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	out := make([]rtypes.ReportDTO, len(reports))
	for i, r := range reports {
		dto := r.ToDTO()
		dto.Text = ""
		out[i] = dto
	}
	return out, total, nil
}

func (s *serviceImpl) GetAssessment(ctx context.Context, reportID common.ID, version int) (rtypes.AssessmentDTO, error) {
	if version < 0 {
		return rtypes.AssessmentDTO{}, errors.Validation("assessment version must not be negative")
	}
	if version > 0 {
		asmt, err := s.deps.Assessments.FindByVersion(ctx, reportID, version)
		if err != nil {
			return rtypes.AssessmentDTO{}, err
		}
		return s.withStoredMatches(ctx, asmt.ToDTO()), nil
	}

	if s.deps.Cache != nil {
		if dto, ok, err := s.deps.Cache.Get(ctx, reportID); err == nil && ok {
			return s.withStoredMatches(ctx, dto), nil
		} else if err != nil {
			s.deps.Logger.Warn("assessment cache read failed",
				logging.String("report_id", string(reportID)), logging.Err(err))
		}
	}

	asmt, err := s.deps.Assessments.FindLatest(ctx, reportID)
	if err != nil {
		return rtypes.AssessmentDTO{}, err
	}
	dto := asmt.ToDTO()
	s.cacheSet(ctx, dto)
	return s.withStoredMatches(ctx, dto), nil
}

// withStoredMatches folds the persisted match relation into the similarity
// section of an assessment view.  When two near-duplicates are submitted
// concurrently, the run that searched first completed before its counterpart
// was indexed and its own row carries no match; the pair is stored once, in
// canonical order, by whichever run finished second.  Reading through the
// stored relation is what makes the match observable from both sides.
//
// The cache holds the run's own view; the fold happens on every read so a
// pair recorded after this report was cached still shows up.
func (s *serviceImpl) withStoredMatches(ctx context.Context, dto rtypes.AssessmentDTO) rtypes.AssessmentDTO {
	stored, err := s.deps.Matches.FindByReport(ctx, dto.ReportID)
	if err != nil {
		s.deps.Logger.Warn("similarity match lookup failed",
			logging.String("report_id", string(dto.ReportID)), logging.Err(err))
		return dto
	}
	if len(stored) == 0 {
		return dto
	}

	seen := make(map[[2]common.ID]bool, len(dto.Similarity.Matches))
	for _, m := range dto.Similarity.Matches {
		seen[[2]common.ID{m.ReportID, m.OtherReportID}] = true
	}
	merged := dto.Similarity.Matches
	for _, m := range stored {
		if seen[[2]common.ID{m.ReportID, m.OtherReportID}] {
			continue
		}
		merged = append(merged, m)
		if m.Score > dto.Similarity.MaxScore {
			dto.Similarity.MaxScore = m.Score
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	dto.Similarity.Matches = merged
	dto.Similarity.PlagiarismSuspected = len(merged) > 0
	return dto
}

func (s *serviceImpl) GetHistory(ctx context.Context, reportID common.ID) ([]rtypes.AssessmentDTO, error) {
	if _, err := s.deps.Reports.FindByID(ctx, reportID); err != nil {
		return nil, err
	}
	history, err := s.deps.Assessments.History(ctx, reportID)
	if err != nil {
		return nil, err
	}
	out := make([]rtypes.AssessmentDTO, len(history))
	for i, a := range history {
		out[i] = a.ToDTO()
	}
	return out, nil
}

func (s *serviceImpl) Compare(ctx context.Context, reportIDs []common.ID) (rtypes.ComparisonDTO, error) {
	ids := dedupeIDs(reportIDs)
	if len(ids) < 2 {
		return rtypes.ComparisonDTO{}, errors.Validation("compare needs at least two distinct report IDs")
	}
	if len(ids) > maxCompareReports {
		return rtypes.ComparisonDTO{}, errors.Validation(
			fmt.Sprintf("compare accepts at most %d reports, got %d", maxCompareReports, len(ids)))
	}

	var result rtypes.ComparisonDTO
	for _, id := range ids {
		dto, err := s.GetAssessment(ctx, id, 0)
		if err != nil {
			return rtypes.ComparisonDTO{}, errors.Wrap(err, errors.ErrCodeAssessmentNotFound,
				fmt.Sprintf("report %s has no completed assessment to compare", id))
		}
		result.Assessments = append(result.Assessments, dto)
	}

	// Pairwise similarity fan-out.  Pair order is deterministic: canonical ID
	// ordering within a pair, lexicographic across pairs.
	type pairKey struct{ a, b common.ID }
	var keys []pairKey
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if b < a {
				a, b = b, a
			}
			keys = append(keys, pairKey{a, b})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	pairs := make([]rtypes.SimilarityMatchDTO, len(keys))
	now := time.Now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			score, err := s.deps.Runner.components.Similarity.PairScore(gctx, key.a, key.b)
			if err != nil {
				return err
			}
			pair := rtypes.SimilarityMatchDTO{
				ReportID:      key.a,
				OtherReportID: key.b,
				Score:         score,
				DetectedAt:    now,
			}
			// A pair already on record keeps its original detection time and
			// matched spans; the score is recomputed against the current texts.
			if stored, err := s.deps.Matches.FindBetween(gctx, key.a, key.b); err == nil && stored != nil {
				pair.DetectedAt = stored.DetectedAt
				pair.Spans = stored.Spans
			}
			pairs[i] = pair
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rtypes.ComparisonDTO{}, err
	}
	result.Pairs = pairs
	return result, nil
}

func (s *serviceImpl) Reassess(ctx context.Context, reportID common.ID) (rtypes.ReportDTO, error) {
	rpt, err := s.deps.Reports.FindByID(ctx, reportID)
	if err != nil {
		return rtypes.ReportDTO{}, err
	}
	if rpt.Status != rtypes.StatusAssessed {
		return rtypes.ReportDTO{}, errors.New(errors.ErrCodeReportStateInvalid,
			fmt.Sprintf("report %s is %s; only assessed reports can be reassessed", reportID, rpt.Status))
	}

	if s.deps.Queue != nil {
		if err := s.deps.Queue.EnqueueAssessment(ctx, reportID, true); err != nil {
			return rtypes.ReportDTO{}, errors.Wrap(err, errors.ErrCodeMessageQueueError,
				"failed to enqueue reassessment request")
		}
		return rpt.ToDTO(), nil
	}

	if _, err := s.RunAssessment(ctx, reportID); err != nil {
		return rtypes.ReportDTO{}, err
	}
	return s.GetReport(ctx, reportID)
}

func (s *serviceImpl) Retract(ctx context.Context, reportID common.ID, reason string) error {
	rpt, err := s.deps.Reports.FindByID(ctx, reportID)
	if err != nil {
		return err
	}
	if err := rpt.Retract(reason); err != nil {
		return err
	}
	if err := s.deps.Reports.Update(ctx, rpt); err != nil {
		return err
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Invalidate(ctx, reportID); err != nil {
			s.deps.Logger.Warn("cache invalidation failed",
				logging.String("report_id", string(reportID)), logging.Err(err))
		}
	}
	s.publish(ctx, rpt.Events())

	s.deps.Logger.Info("report retracted",
		logging.String("report_id", string(reportID)),
		logging.String("reason", reason),
	)
	return nil
}

func (s *serviceImpl) Archive(ctx context.Context, reportID common.ID) error {
	rpt, err := s.deps.Reports.FindByID(ctx, reportID)
	if err != nil {
		return err
	}
	if err := rpt.Archive(); err != nil {
		return err
	}
	if err := s.deps.Reports.Update(ctx, rpt); err != nil {
		return err
	}
	s.publish(ctx, rpt.Events())
	return nil
}

// narrate asks the configured narrator for a summary and falls back to a
// template when it is missing or fails.  Narrative generation never blocks an
// assessment from completing.
func (s *serviceImpl) narrate(ctx context.Context, asmt *report.Assessment) string {
	dto := asmt.ToDTO()
	if s.deps.Narrator != nil {
		text, err := s.deps.Narrator.Narrate(ctx, dto)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			s.deps.Logger.Warn("narrative generation failed, using template",
				logging.String("report_id", string(asmt.ReportID)), logging.Err(err))
		}
	}
	return templateNarrative(dto)
}

// templateNarrative renders a deterministic summary of the run.
func templateNarrative(dto rtypes.AssessmentDTO) string {
	plagiarism := "no plagiarism candidates"
	if dto.Similarity.PlagiarismSuspected {
		plagiarism = fmt.Sprintf("%d plagiarism candidate(s), strongest at %.2f",
			len(dto.Similarity.Matches), dto.Similarity.MaxScore)
	}
	degraded := ""
	if dto.DegradedCount > 0 {
		degraded = fmt.Sprintf(" %d dimension(s) were unavailable in this run.", dto.DegradedCount)
	}
	return fmt.Sprintf(
		"Assessment v%d: overall quality %.1f/100, %s, authorship %s (p=%.2f), compliance risk %s.%s",
		dto.Version, dto.OverallScore, plagiarism,
		dto.AIDetection.Label, dto.AIDetection.Probability,
		dto.Compliance.OverallRisk, degraded)
}

func (s *serviceImpl) publish(ctx context.Context, events []common.DomainEvent) {
	if s.deps.Publisher == nil || len(events) == 0 {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, events); err != nil {
		s.deps.Logger.Warn("event publish failed", logging.Err(err))
	}
}

func (s *serviceImpl) cacheSet(ctx context.Context, dto rtypes.AssessmentDTO) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, dto); err != nil {
		s.deps.Logger.Warn("assessment cache write failed",
			logging.String("report_id", string(dto.ReportID)), logging.Err(err))
	}
}

func dedupeIDs(ids []common.ID) []common.ID {
	seen := make(map[common.ID]bool, len(ids))
	var out []common.ID
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
