package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/EquityLens/internal/analysis/ingest"
	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
)

// Quote is a market-data snapshot for one ticker.
type Quote struct {
	Symbol   string
	Price    float64
	Currency string
}

// MarketData resolves tickers against a quote service.  Implementations
// return ErrCodeExternalService (or another degradable code) on transport
// failures so the scorer can degrade the factual-accuracy dimension instead
// of failing the assessment.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}

// Scorer grades a normalised document on the seven quality dimensions.
// Every dimension except factual accuracy is computed locally and cannot
// degrade; factual accuracy depends on the market-data service and is
// reported unavailable when that service cannot be reached.
type Scorer struct {
	weights      map[string]float64
	marketData   MarketData
	maxRetries   int
	retryBackoff time.Duration
	log          logging.Logger
}

// NewScorer validates the weight map and constructs a scorer.  The map must
// assign a positive weight to every dimension in AllDimensions; config
// defaults satisfy this.
func NewScorer(weights map[string]float64, md MarketData, log logging.Logger) (*Scorer, error) {
	for _, name := range AllDimensions {
		w, ok := weights[name]
		if !ok {
			return nil, errors.New(errors.ErrCodeWeightsInvalid,
				fmt.Sprintf("weight map missing dimension %q", name))
		}
		if w <= 0 {
			return nil, errors.New(errors.ErrCodeWeightsInvalid,
				fmt.Sprintf("dimension %q has non-positive weight %f", name, w))
		}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	copied := make(map[string]float64, len(weights))
	for k, v := range weights {
		copied[k] = v
	}
	return &Scorer{
		weights:      copied,
		marketData:   md,
		maxRetries:   2,
		retryBackoff: 200 * time.Millisecond,
		log:          log,
	}, nil
}

// Score grades the document on every dimension except originality, which
// depends on the similarity analyzer's output and is assembled separately via
// Originality once both components have finished.
func (s *Scorer) Score(ctx context.Context, doc *ingest.Document) ([]report.DimensionScore, error) {
	if doc == nil || doc.Text == "" {
		return nil, errors.Validation("quality scoring needs a normalised document")
	}

	return []report.DimensionScore{
		s.available(DimContentDepth, contentDepthScore(doc.Text, doc.WordCount)),
		s.factualAccuracy(ctx, doc),
		s.available(DimPredictivePower, predictivePowerScore(doc.Text)),
		s.available(DimBias, biasScore(doc.Text)),
		s.available(DimRiskDisclosure, riskDisclosureScore(doc.Text, doc.WordCount)),
		s.available(DimTransparency, transparencyScore(doc.Text)),
	}, nil
}

func (s *Scorer) available(name string, score float64) report.DimensionScore {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return report.AvailableDimension(name, score, s.weights[name])
}

// Originality inverts the strongest similarity hit: a report whose nearest
// neighbour scores 0.85 earns 15.  When the similarity component itself
// degraded, originality is reported unavailable rather than defaulting high.
func (s *Scorer) Originality(sim report.SimilarityResult, simAvailable bool) report.DimensionScore {
	if !simAvailable {
		return report.UnavailableDimension(DimOriginality, "similarity analysis unavailable")
	}
	return s.available(DimOriginality, (1-sim.MaxScore)*100)
}

// factualAccuracy verifies that the tickers a report discusses resolve
// against live market data.  A report naming no instruments gets a neutral
// grade; market-data outages degrade the dimension.
func (s *Scorer) factualAccuracy(ctx context.Context, doc *ingest.Document) report.DimensionScore {
	if len(doc.Tickers) == 0 {
		return s.available(DimFactualAccuracy, 50)
	}
	if s.marketData == nil {
		return report.UnavailableDimension(DimFactualAccuracy, "market data provider not configured")
	}

	resolved := 0
	for _, ticker := range doc.Tickers {
		_, err := s.quoteWithRetry(ctx, ticker)
		if err == nil {
			resolved++
			continue
		}
		if errors.IsDegradable(err) || errors.IsCode(err, errors.ErrCodeMarketDataFailed) {
			s.log.Warn("market data unavailable, degrading factual accuracy",
				logging.String("ticker", ticker),
				logging.Err(err),
			)
			return report.UnavailableDimension(DimFactualAccuracy, "market data service unavailable")
		}
		// A clean not-found is a signal about the report, not an outage.
	}
	return s.available(DimFactualAccuracy, float64(resolved)/float64(len(doc.Tickers))*100)
}

// quoteWithRetry retries transient market-data failures with bounded
// exponential backoff before giving up and degrading.
func (s *Scorer) quoteWithRetry(ctx context.Context, symbol string) (Quote, error) {
	var lastErr error
	backoff := s.retryBackoff
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Quote{}, errors.Wrap(ctx.Err(), errors.ErrCodeComputationTimeout, "market data retry cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		q, err := s.marketData.Quote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		if !errors.IsDegradable(err) {
			return Quote{}, err
		}
		lastErr = err
	}
	return Quote{}, errors.Wrap(lastErr, errors.ErrCodeMarketDataFailed,
		fmt.Sprintf("quote lookup for %s failed after %d attempts", symbol, s.maxRetries+1))
}
