package similarity

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// TextProvider resolves a report's normalised text for span localisation.
// The application layer implements it on top of the report repository.
type TextProvider interface {
	TextByID(ctx context.Context, id common.ID) (string, error)
}

// Config carries the analyzer tunables, typically derived from
// config.AnalysisConfig.
type Config struct {
	Threshold      float64
	TopK           int
	SpanWindowSize int
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Deps bundles the analyzer's collaborators.
type Deps struct {
	// Embedder is the primary (external) embedding path.  May be nil, in
	// which case every run takes the lexical fallback.
	Embedder Embedder

	// Index is the vector namespace of the primary embedder.
	Index VectorBackend

	// Fallback and FallbackIndex form the lexical path.  Both are required:
	// plagiarism detection must stay available when the embedding service is
	// down.
	Fallback      Embedder
	FallbackIndex VectorBackend

	Texts  TextProvider
	Logger logging.Logger
}

// Analyzer runs the plagiarism-detection stage of an assessment.
type Analyzer struct {
	deps Deps
	cfg  Config
}

// NewAnalyzer validates deps and constructs the analyzer.
func NewAnalyzer(deps Deps, cfg Config) (*Analyzer, error) {
	if deps.Fallback == nil || deps.FallbackIndex == nil {
		return nil, errors.Internal("similarity analyzer requires the lexical fallback path")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("similarity threshold %.3f out of range (0, 1]", cfg.Threshold))
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &Analyzer{deps: deps, cfg: cfg}, nil
}

// Analyze embeds the document, inserts it into the index, and searches for
// plagiarism candidates.  The search runs AFTER the insert: when two reports
// are assessed concurrently, whichever insert linearises second is guaranteed
// to see the other in its own search, so an above-threshold pair is flagged
// on at least one side regardless of interleaving.
//
// Embedding failures degrade to the lexical path rather than failing the run;
// the result is then flagged lower-confidence via LexicalFallback.
func (a *Analyzer) Analyze(ctx context.Context, reportID common.ID, text string) (report.SimilarityResult, error) {
	embedder, index := a.deps.Embedder, a.deps.Index
	fallback := false

	var vec Vector
	var err error
	if embedder != nil && index != nil {
		vec, err = a.embedWithRetry(ctx, embedder, text)
	} else {
		err = errors.ExternalService("no primary embedder configured")
	}
	if err != nil {
		if !errors.IsDegradable(err) {
			return report.SimilarityResult{}, err
		}
		a.deps.Logger.Warn("embedding unavailable, using lexical fallback",
			logging.String("report_id", string(reportID)),
			logging.Err(err),
		)
		fallback = true
		embedder, index = a.deps.Fallback, a.deps.FallbackIndex
		vec, err = embedder.Embed(ctx, text)
		if err != nil {
			return report.SimilarityResult{}, errors.Wrap(err, errors.ErrCodeEmbeddingFailed,
				"lexical fallback embedding failed")
		}
	}

	if err := a.insertWithRetry(ctx, index, reportID, vec); err != nil {
		return report.SimilarityResult{}, err
	}

	// Second pass: search after our own insert for the mutual-match
	// guarantee.  +1 compensates for the query hitting itself.
	neighbors, err := index.Search(ctx, vec, a.cfg.TopK+1)
	if err != nil {
		return report.SimilarityResult{}, errors.Wrap(err, errors.ErrCodeSimilaritySearchFail,
			"post-insert similarity search failed")
	}

	result := report.SimilarityResult{LexicalFallback: fallback}
	now := time.Now().UTC()
	for _, n := range neighbors {
		if n.ReportID == reportID {
			continue
		}
		if n.Score > result.MaxScore {
			result.MaxScore = n.Score
		}
		if n.Score < a.cfg.Threshold {
			continue
		}

		match := rtypes.SimilarityMatchDTO{
			Score:      n.Score,
			DetectedAt: now,
		}
		match.ReportID, match.OtherReportID = canonicalPair(reportID, n.ReportID)
		match.Spans = a.locateSpans(ctx, text, n.ReportID)
		result.Matches = append(result.Matches, match)
	}
	result.PlagiarismSuspected = len(result.Matches) > 0

	if result.PlagiarismSuspected {
		a.deps.Logger.Info("plagiarism candidates found",
			logging.String("report_id", string(reportID)),
			logging.Int("matches", len(result.Matches)),
			logging.Float64("max_score", result.MaxScore),
			logging.Bool("lexical_fallback", fallback),
		)
	}
	return result, nil
}

// PairScore returns the cosine similarity of two already-indexed reports.
// Used by the compare operation.  Reports missing from the primary namespace
// are looked up in the lexical one.
func (a *Analyzer) PairScore(ctx context.Context, x, y common.ID) (float64, error) {
	vx, vy, err := a.fetchPair(ctx, x, y)
	if err != nil {
		return 0, err
	}
	return Cosine(vx, vy)
}

func (a *Analyzer) fetchPair(ctx context.Context, x, y common.ID) (Vector, Vector, error) {
	for _, index := range []VectorBackend{a.deps.Index, a.deps.FallbackIndex} {
		if index == nil {
			continue
		}
		vx, okX, err := index.Fetch(ctx, x)
		if err != nil {
			return nil, nil, err
		}
		vy, okY, err := index.Fetch(ctx, y)
		if err != nil {
			return nil, nil, err
		}
		if okX && okY {
			return vx, vy, nil
		}
	}
	return nil, nil, errors.New(errors.ErrCodeSimilaritySearchFail,
		fmt.Sprintf("reports %s and %s are not indexed in a shared namespace", x, y))
}

func (a *Analyzer) locateSpans(ctx context.Context, text string, otherID common.ID) []rtypes.MatchedSpanDTO {
	if a.deps.Texts == nil {
		return nil
	}
	otherText, err := a.deps.Texts.TextByID(ctx, otherID)
	if err != nil {
		a.deps.Logger.Warn("span localisation skipped",
			logging.String("other_report_id", string(otherID)),
			logging.Err(err),
		)
		return nil
	}
	return FindMatchingSpans(text, otherText, a.cfg.SpanWindowSize)
}

// embedWithRetry retries external embedding with bounded exponential backoff.
// Non-degradable errors abort immediately.
func (a *Analyzer) embedWithRetry(ctx context.Context, e Embedder, text string) (Vector, error) {
	var lastErr error
	backoff := a.cfg.RetryBackoff
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeComputationTimeout, "embedding retry cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		vec, err := e.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if !errors.IsDegradable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, errors.ErrCodeExternalService,
		fmt.Sprintf("embedding failed after %d attempts", a.cfg.MaxRetries+1))
}

// insertWithRetry absorbs transient index write conflicts (shared-backend
// mode surfaces them as ErrCodeIndexConsistency).  The retry is transparent:
// the code never reaches API consumers.
func (a *Analyzer) insertWithRetry(ctx context.Context, index VectorBackend, id common.ID, vec Vector) error {
	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		err := index.Insert(ctx, id, vec)
		if err == nil {
			return nil
		}
		if !errors.IsCode(err, errors.ErrCodeIndexConsistency) {
			return err
		}
		lastErr = err
		a.deps.Logger.Debug("index write conflict, retrying",
			logging.String("report_id", string(id)),
			logging.Int("attempt", attempt+1),
		)
	}
	return errors.Wrap(lastErr, errors.ErrCodeIndexConsistency,
		fmt.Sprintf("index insert failed after %d attempts", a.cfg.MaxRetries+1))
}

// canonicalPair orders two report IDs lexicographically so a match between A
// and B is one record regardless of which side detected it.
func canonicalPair(a, b common.ID) (common.ID, common.ID) {
	if a <= b {
		return a, b
	}
	return b, a
}
