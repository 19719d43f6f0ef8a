package similarity

import (
	"strings"

	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// spanSimilarityThreshold is the minimum token-set Jaccard for a window pair
// to count as a matching span.  Deliberately lower than the document-level
// plagiarism threshold: spans localise where the overlap sits inside an
// already-flagged pair.
const spanSimilarityThreshold = 0.6

// FindMatchingSpans slides a window of windowSize tokens over both documents
// and reports window pairs whose token-set Jaccard exceeds the span
// threshold.  Offsets are token positions in the respective document.
// Overlapping hits on the source side are merged into maximal spans.
//
// Cost is O(windows(a) * windows(b)) with a stride of half a window; fine for
// report-sized documents, and only runs for pairs already above the
// plagiarism threshold.
func FindMatchingSpans(source, target string, windowSize int) []rtypes.MatchedSpanDTO {
	if windowSize <= 0 {
		windowSize = 50
	}
	srcTokens := strings.Fields(strings.ToLower(source))
	tgtTokens := strings.Fields(strings.ToLower(target))
	if len(srcTokens) == 0 || len(tgtTokens) == 0 {
		return nil
	}

	stride := windowSize / 2
	if stride == 0 {
		stride = 1
	}

	tgtWindows := windowStarts(len(tgtTokens), windowSize, stride)
	tgtSets := make([]map[string]bool, len(tgtWindows))
	for i, start := range tgtWindows {
		tgtSets[i] = tokenSet(tgtTokens, start, windowSize)
	}

	var raw []rtypes.MatchedSpanDTO
	for _, srcStart := range windowStarts(len(srcTokens), windowSize, stride) {
		srcSet := tokenSet(srcTokens, srcStart, windowSize)

		bestScore, bestTgt := 0.0, -1
		for i, tgtSet := range tgtSets {
			if score := jaccard(srcSet, tgtSet); score > bestScore {
				bestScore, bestTgt = score, tgtWindows[i]
			}
		}
		if bestScore >= spanSimilarityThreshold {
			raw = append(raw, rtypes.MatchedSpanDTO{
				SourceStart: srcStart,
				SourceEnd:   end(srcStart, windowSize, len(srcTokens)),
				TargetStart: bestTgt,
				TargetEnd:   end(bestTgt, windowSize, len(tgtTokens)),
				Similarity:  bestScore,
			})
		}
	}

	return mergeSpans(raw)
}

func windowStarts(n, window, stride int) []int {
	if n <= window {
		return []int{0}
	}
	var starts []int
	for s := 0; s < n; s += stride {
		starts = append(starts, s)
		if s+window >= n {
			break
		}
	}
	return starts
}

func end(start, window, n int) int {
	e := start + window
	if e > n {
		e = n
	}
	return e
}

func tokenSet(tokens []string, start, window int) map[string]bool {
	set := make(map[string]bool, window)
	for i := start; i < start+window && i < len(tokens); i++ {
		set[tokens[i]] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	var inter int
	for tok := range small {
		if large[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// mergeSpans collapses source-side overlapping or adjacent spans, keeping the
// highest similarity and the widest target extent of the merged run.
func mergeSpans(spans []rtypes.MatchedSpanDTO) []rtypes.MatchedSpanDTO {
	if len(spans) <= 1 {
		return spans
	}
	// spans arrive ordered by SourceStart by construction
	out := []rtypes.MatchedSpanDTO{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.SourceStart <= last.SourceEnd {
			if s.SourceEnd > last.SourceEnd {
				last.SourceEnd = s.SourceEnd
			}
			if s.TargetStart < last.TargetStart {
				last.TargetStart = s.TargetStart
			}
			if s.TargetEnd > last.TargetEnd {
				last.TargetEnd = s.TargetEnd
			}
			if s.Similarity > last.Similarity {
				last.Similarity = s.Similarity
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
