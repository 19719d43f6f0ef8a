package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// weightEpsilon is the tolerance for weight-sum checks after renormalisation.
const weightEpsilon = 1e-9

// DimensionScore is one quality dimension of an assessment run.  It is a
// tagged variant: when Available is true Score holds a value in [0, 100] and
// Weight the configured weight; when false, both are zero and Reason explains
// the gap.  An unavailable dimension never contributes zero to the composite,
// it is excluded and the remaining weights are renormalised.
type DimensionScore struct {
	Name      string
	Score     float64
	Weight    float64
	Available bool
	Reason    string
}

// AvailableDimension constructs an available DimensionScore.
func AvailableDimension(name string, score, weight float64) DimensionScore {
	return DimensionScore{Name: name, Score: score, Weight: weight, Available: true}
}

// UnavailableDimension constructs a degraded DimensionScore carrying the
// degradation reason.
func UnavailableDimension(name, reason string) DimensionScore {
	return DimensionScore{Name: name, Available: false, Reason: reason}
}

// SimilarityResult is the plagiarism component of an assessment.
type SimilarityResult struct {
	PlagiarismSuspected bool
	MaxScore            float64
	Matches             []rtypes.SimilarityMatchDTO
	// LexicalFallback is true when the embedding service was unavailable and
	// similarity was computed from n-gram overlap at lower confidence.
	LexicalFallback bool
}

// AIDetectionResult is the authorship component of an assessment.
type AIDetectionResult struct {
	Probability float64
	Confidence  float64
	Label       rtypes.AuthorshipLabel
	Features    map[string]float64
}

// ComplianceResult is the compliance and geopolitical-risk component.
type ComplianceResult struct {
	Findings    []rtypes.ComplianceFindingDTO
	RegionRisks map[string]common.RiskLevel
	OverallRisk common.RiskLevel
}

// Assessment is one versioned assessment run over a report.  Versions are
// append-only: a reassessment produces version v+1 and never mutates earlier
// rows.
type Assessment struct {
	ID       common.ID
	ReportID common.ID
	Version  int

	// OverallScore is the weighted quality composite in [0, 100].  When no
	// quality dimension was available it is 0 and QualityAvailable is false.
	OverallScore     float64
	QualityAvailable bool
	Dimensions       []DimensionScore

	Similarity  SimilarityResult
	AIDetection AIDetectionResult
	Compliance  ComplianceResult

	// DegradedDimensions names every component or dimension that could not be
	// computed in this run.  The count is part of the public contract: a
	// completed assessment always states how much of it is degraded.
	DegradedDimensions []string

	Narrative string
	CreatedAt time.Time
}

// NewAssessment assembles an assessment run from component results, computing
// the quality composite with proportional weight renormalisation over the
// available dimensions.
//
// Renormalisation invariant: the effective weights of the available
// dimensions always sum to 1.0 and keep their configured proportions.  This
// means a report scored on a subset of dimensions is comparable with one
// scored on all of them.
func NewAssessment(
	reportID common.ID,
	version int,
	dims []DimensionScore,
	sim SimilarityResult,
	ai AIDetectionResult,
	comp ComplianceResult,
	degradedComponents ...string,
) (*Assessment, error) {
	if reportID == "" {
		return nil, errors.Validation("assessment report ID must not be empty")
	}
	if version < 1 {
		return nil, errors.Validation(fmt.Sprintf("assessment version must be >= 1, got %d", version))
	}

	normalised, composite, qualityAvailable, err := renormalise(dims)
	if err != nil {
		return nil, err
	}

	a := &Assessment{
		ID:               common.NewID(),
		ReportID:         reportID,
		Version:          version,
		OverallScore:     composite,
		QualityAvailable: qualityAvailable,
		Dimensions:       normalised,
		Similarity:       sim,
		AIDetection:      ai,
		Compliance:       comp,
		CreatedAt:        time.Now().UTC(),
	}
	a.DegradedDimensions = collectDegraded(normalised, sim, degradedComponents)
	return a, nil
}

// renormalise excludes unavailable dimensions and scales the remaining
// weights proportionally so they sum to 1.0, then computes the composite.
func renormalise(dims []DimensionScore) ([]DimensionScore, float64, bool, error) {
	var weightSum float64
	for _, d := range dims {
		if !d.Available {
			continue
		}
		if d.Score < 0 || d.Score > 100 {
			return nil, 0, false, errors.New(errors.ErrCodeDimensionUnavailable,
				fmt.Sprintf("dimension %q score %.2f is out of range [0, 100]", d.Name, d.Score))
		}
		if d.Weight <= 0 {
			return nil, 0, false, errors.New(errors.ErrCodeWeightsInvalid,
				fmt.Sprintf("dimension %q has non-positive weight %f", d.Name, d.Weight))
		}
		weightSum += d.Weight
	}

	out := make([]DimensionScore, len(dims))
	copy(out, dims)

	if weightSum == 0 {
		// Every dimension degraded; the composite is unavailable.
		return out, 0, false, nil
	}

	var composite float64
	for i := range out {
		if !out[i].Available {
			out[i].Score = 0
			out[i].Weight = 0
			continue
		}
		out[i].Weight = out[i].Weight / weightSum
		composite += out[i].Weight * out[i].Score
	}

	// The renormalised weights must sum to exactly 1 within epsilon.
	var check float64
	for _, d := range out {
		check += d.Weight
	}
	if math.Abs(check-1.0) > weightEpsilon {
		return nil, 0, false, errors.New(errors.ErrCodeWeightsInvalid,
			fmt.Sprintf("renormalised weights sum to %.12f", check))
	}

	return out, composite, true, nil
}

// collectDegraded lists unavailable dimensions plus component-level
// degradations, deduplicated and in deterministic order.
func collectDegraded(dims []DimensionScore, sim SimilarityResult, components []string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	for _, d := range dims {
		if !d.Available {
			add(d.Name)
		}
	}
	if sim.LexicalFallback {
		add("similarity_embedding")
	}
	for _, c := range components {
		add(c)
	}
	sort.Strings(names)
	return names
}

// DegradedCount returns the number of degraded dimensions in this run.
func (a *Assessment) DegradedCount() int {
	return len(a.DegradedDimensions)
}

// ToDTO converts the assessment to its transport representation.
func (a *Assessment) ToDTO() rtypes.AssessmentDTO {
	dto := rtypes.AssessmentDTO{
		ID:                 a.ID,
		ReportID:           a.ReportID,
		Version:            a.Version,
		OverallScore:       a.OverallScore,
		DegradedDimensions: a.DegradedDimensions,
		DegradedCount:      len(a.DegradedDimensions),
		Narrative:          a.Narrative,
		CreatedAt:          a.CreatedAt,
		Similarity: rtypes.SimilarityResultDTO{
			PlagiarismSuspected: a.Similarity.PlagiarismSuspected,
			MaxScore:            a.Similarity.MaxScore,
			Matches:             a.Similarity.Matches,
		},
		AIDetection: rtypes.AIDetectionDTO{
			Probability: a.AIDetection.Probability,
			Confidence:  a.AIDetection.Confidence,
			Label:       a.AIDetection.Label,
			Features:    a.AIDetection.Features,
		},
		Compliance: rtypes.ComplianceResultDTO{
			Findings:    a.Compliance.Findings,
			RegionRisks: a.Compliance.RegionRisks,
			OverallRisk: a.Compliance.OverallRisk,
		},
	}
	dto.Dimensions = make([]rtypes.DimensionScoreDTO, len(a.Dimensions))
	for i, d := range a.Dimensions {
		dto.Dimensions[i] = rtypes.DimensionScoreDTO{
			Name:      d.Name,
			Score:     d.Score,
			Weight:    d.Weight,
			Available: d.Available,
			Reason:    d.Reason,
		}
	}
	return dto
}

// AssessmentFromDTO rehydrates an Assessment from its transport form.  Used
// by repositories; no validation or event emission happens here.
func AssessmentFromDTO(dto rtypes.AssessmentDTO, qualityAvailable bool) *Assessment {
	a := &Assessment{
		ID:                 dto.ID,
		ReportID:           dto.ReportID,
		Version:            dto.Version,
		OverallScore:       dto.OverallScore,
		QualityAvailable:   qualityAvailable,
		DegradedDimensions: dto.DegradedDimensions,
		Narrative:          dto.Narrative,
		CreatedAt:          dto.CreatedAt,
		Similarity: SimilarityResult{
			PlagiarismSuspected: dto.Similarity.PlagiarismSuspected,
			MaxScore:            dto.Similarity.MaxScore,
			Matches:             dto.Similarity.Matches,
		},
		AIDetection: AIDetectionResult{
			Probability: dto.AIDetection.Probability,
			Confidence:  dto.AIDetection.Confidence,
			Label:       dto.AIDetection.Label,
			Features:    dto.AIDetection.Features,
		},
		Compliance: ComplianceResult{
			Findings:    dto.Compliance.Findings,
			RegionRisks: dto.Compliance.RegionRisks,
			OverallRisk: dto.Compliance.OverallRisk,
		},
	}
	a.Dimensions = make([]DimensionScore, len(dto.Dimensions))
	for i, d := range dto.Dimensions {
		a.Dimensions[i] = DimensionScore{
			Name:      d.Name,
			Score:     d.Score,
			Weight:    d.Weight,
			Available: d.Available,
			Reason:    d.Reason,
		}
	}
	return a
}
