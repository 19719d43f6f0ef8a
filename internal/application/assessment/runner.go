package assessment

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/EquityLens/internal/analysis/aidetect"
	"github.com/turtacn/EquityLens/internal/analysis/compliance"
	"github.com/turtacn/EquityLens/internal/analysis/ingest"
	"github.com/turtacn/EquityLens/internal/analysis/quality"
	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// Component names used in degradation records and metrics labels.
const (
	ComponentSimilarity  = "similarity"
	ComponentQuality     = "quality"
	ComponentAIDetection = "ai_detection"
	ComponentCompliance  = "compliance"
)

// Metrics receives per-run observations.  The prometheus collector implements
// it; a nop implementation backs tests and metric-less deployments.
type Metrics interface {
	ObserveComponent(component string, seconds float64, degraded bool)
	ObserveAssessment(degradedCount int, plagiarismSuspected bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveComponent(string, float64, bool) {}
func (nopMetrics) ObserveAssessment(int, bool)            {}

// Components bundles the four analyzers the runner fans out to.
type Components struct {
	Similarity *similarity.Analyzer
	Quality    *quality.Scorer
	Detector   *aidetect.Detector
	Compliance *compliance.Assessor
}

// Runner executes one assessment over an already-ingested report.  The four
// analyzers run concurrently, each under its own deadline; any of them may
// degrade without failing the run.  Ingestion is the only fatal stage and it
// happens before the runner is involved.
type Runner struct {
	components Components
	timeout    time.Duration
	metrics    Metrics
	log        logging.Logger
}

// NewRunner validates the component set and constructs a runner.
func NewRunner(components Components, timeout time.Duration, metrics Metrics, log logging.Logger) (*Runner, error) {
	if components.Similarity == nil || components.Quality == nil ||
		components.Detector == nil || components.Compliance == nil {
		return nil, errors.Internal("assessment runner requires all four analyzers")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Runner{components: components, timeout: timeout, metrics: metrics, log: log}, nil
}

// Run assembles assessment run `version` for the report.  It returns an error
// only when the assembled results are internally inconsistent; component
// failures surface as degraded dimensions on the returned assessment instead.
func (r *Runner) Run(ctx context.Context, rpt *report.Report) (*report.Assessment, int, error) {
	version := rpt.LatestAssessmentVersion() + 1
	doc := &ingest.Document{
		Text:      rpt.Text,
		WordCount: rpt.WordCount,
		Tickers:   rpt.Tickers,
		Regions:   rpt.Regions,
	}

	var (
		mu       sync.Mutex
		simRes   report.SimilarityResult
		simOK    bool
		dims     []report.DimensionScore
		aiRes    report.AIDetectionResult
		compRes  report.ComplianceResult
		degraded []string
	)
	degrade := func(component string, err error) {
		r.log.Warn("assessment component degraded",
			logging.String("report_id", string(rpt.ID)),
			logging.String("component", component),
			logging.Err(err),
		)
		degraded = append(degraded, component)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, sec, err := runComponent(gctx, r.timeout, func(c context.Context) (report.SimilarityResult, error) {
			return r.components.Similarity.Analyze(c, rpt.ID, rpt.Text)
		})
		r.metrics.ObserveComponent(ComponentSimilarity, sec, err != nil)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			degrade(ComponentSimilarity, err)
			return nil
		}
		simRes, simOK = res, true
		return nil
	})

	g.Go(func() error {
		res, sec, err := runComponent(gctx, r.timeout, func(c context.Context) ([]report.DimensionScore, error) {
			return r.components.Quality.Score(c, doc)
		})
		r.metrics.ObserveComponent(ComponentQuality, sec, err != nil)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			degrade(ComponentQuality, err)
			dims = unavailableQualityDims("quality scoring failed")
			return nil
		}
		dims = res
		return nil
	})

	g.Go(func() error {
		res, sec, err := runComponent(gctx, r.timeout, func(context.Context) (report.AIDetectionResult, error) {
			return r.components.Detector.Detect(rpt.Text)
		})
		r.metrics.ObserveComponent(ComponentAIDetection, sec, err != nil)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			// Includes texts below the detector's token floor: authorship is
			// simply unknown for them.
			degrade(ComponentAIDetection, err)
			aiRes = report.AIDetectionResult{Label: rtypes.AuthorshipUncertain}
			return nil
		}
		aiRes = res
		return nil
	})

	g.Go(func() error {
		res, sec, err := runComponent(gctx, r.timeout, func(context.Context) (report.ComplianceResult, error) {
			return r.components.Compliance.Assess(rpt.Text, rpt.Regions)
		})
		r.metrics.ObserveComponent(ComponentCompliance, sec, err != nil)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			degrade(ComponentCompliance, err)
			return nil
		}
		compRes = res
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	// Originality joins the quality dimensions at fan-in: it inverts the
	// similarity score, so it degrades together with the similarity component.
	dims = append(dims, r.components.Quality.Originality(simRes, simOK))
	sortDims(dims)

	asmt, err := report.NewAssessment(rpt.ID, version, dims, simRes, aiRes, compRes, degraded...)
	if err != nil {
		return nil, 0, err
	}
	r.metrics.ObserveAssessment(asmt.DegradedCount(), asmt.Similarity.PlagiarismSuspected)
	return asmt, version, nil
}

type componentResult[T any] struct {
	val T
	err error
}

// runComponent executes fn under its own deadline and reports the elapsed
// seconds.  A component that overruns is abandoned; its eventual result is
// discarded through the buffered channel.
func runComponent[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, float64, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ch := make(chan componentResult[T], 1)
	go func() {
		v, err := fn(cctx)
		ch <- componentResult[T]{val: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.val, time.Since(start).Seconds(), res.err
	case <-cctx.Done():
		var zero T
		return zero, time.Since(start).Seconds(),
			errors.Timeout("component exceeded its deadline").WithCause(cctx.Err())
	}
}

// unavailableQualityDims marks every locally-scored dimension degraded with
// the given reason.  Originality is handled separately at fan-in.
func unavailableQualityDims(reason string) []report.DimensionScore {
	dims := make([]report.DimensionScore, 0, len(quality.AllDimensions)-1)
	for _, name := range quality.AllDimensions {
		if name == quality.DimOriginality {
			continue
		}
		dims = append(dims, report.UnavailableDimension(name, reason))
	}
	return dims
}

// sortDims orders dimensions canonically for stable output.
func sortDims(dims []report.DimensionScore) {
	rank := make(map[string]int, len(quality.AllDimensions))
	for i, name := range quality.AllDimensions {
		rank[name] = i
	}
	sort.SliceStable(dims, func(i, j int) bool {
		return rank[dims[i].Name] < rank[dims[j].Name]
	})
}
