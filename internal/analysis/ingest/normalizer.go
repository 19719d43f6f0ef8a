// Package ingest implements the ingestion stage of the assessment pipeline:
// text normalisation, exact-match ticker extraction, and region mention
// extraction.  Ingestion is the only stage whose failure is fatal to a run;
// every later analyzer degrades instead.
package ingest

import (
	"strings"
	"unicode"

	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
)

// Document is the normalised output of ingestion, the canonical input for
// every downstream analyzer.
type Document struct {
	Text      string
	WordCount int
	Tickers   []string
	Regions   []string
}

// Normalizer cleans raw report text and extracts the entities the analyzers
// need.  It is stateless and safe for concurrent use.
type Normalizer struct {
	log logging.Logger
}

// NewNormalizer constructs a Normalizer.  A nil logger falls back to the nop
// implementation.
func NewNormalizer(log logging.Logger) *Normalizer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Normalizer{log: log}
}

// Normalize validates and cleans raw text, then extracts tickers and region
// mentions.  Empty or whitespace-only input returns a validation error; this
// is the one failure the aggregator never degrades around.
func (n *Normalizer) Normalize(raw string) (*Document, error) {
	cleaned := cleanText(raw)
	if cleaned == "" {
		return nil, errors.Validation("report text must not be empty")
	}

	doc := &Document{
		Text:      cleaned,
		WordCount: len(strings.Fields(cleaned)),
		Tickers:   ExtractTickers(cleaned),
		Regions:   ExtractRegions(cleaned),
	}

	n.log.Debug("document normalised",
		logging.Int("word_count", doc.WordCount),
		logging.Int("tickers", len(doc.Tickers)),
		logging.Int("regions", len(doc.Regions)),
	)
	return doc, nil
}

// cleanText collapses runs of whitespace to single spaces, strips control and
// zero-width characters, and trims the result.  Letter case is preserved:
// ticker extraction depends on it.
func cleanText(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))

	lastSpace := true
	for _, r := range raw {
		switch {
		case r == '\u200b' || r == '\ufeff':
			// zero-width space / BOM
			continue
		case unicode.IsSpace(r):
			if !lastSpace {
				sb.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			continue
		default:
			sb.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
