// Package report defines the enums and data-transfer objects of the research
// report and assessment domain.  These types cross layer boundaries: domain
// aggregates convert to them, HTTP handlers and the CLI render them, and the
// Kafka pipeline serialises them.
package report

import (
	"time"

	"github.com/turtacn/EquityLens/pkg/types/common"
)

// ReportStatus is the lifecycle state of a research report.
type ReportStatus string

const (
	StatusSubmitted   ReportStatus = "submitted"
	StatusAssessing   ReportStatus = "assessing"
	StatusAssessed    ReportStatus = "assessed"
	StatusReassessing ReportStatus = "reassessing"
	StatusArchived    ReportStatus = "archived"
	StatusRetracted   ReportStatus = "retracted"
)

// AuthorshipLabel is the verdict band of the AI-authorship detector.
type AuthorshipLabel string

const (
	AuthorshipHuman     AuthorshipLabel = "human"
	AuthorshipUncertain AuthorshipLabel = "uncertain"
	AuthorshipAILikely  AuthorshipLabel = "ai_likely"
)

// ReportDTO is the transport representation of a research report.
type ReportDTO struct {
	common.BaseEntity
	Title     string           `json:"title"`
	AnalystID common.AnalystID `json:"analyst_id"`
	Text      string           `json:"text,omitempty"`
	Tickers   []string         `json:"tickers,omitempty"`
	Regions   []string         `json:"regions,omitempty"`
	WordCount int              `json:"word_count"`
	Status    ReportStatus     `json:"status"`
}

// DimensionScoreDTO carries one quality dimension of an assessment.  When
// Available is false, Score and Weight are zero and Reason explains why the
// dimension could not be computed.
type DimensionScoreDTO struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason,omitempty"`
}

// MatchedSpanDTO locates one pair of matching text windows between two reports.
type MatchedSpanDTO struct {
	SourceStart int     `json:"source_start"`
	SourceEnd   int     `json:"source_end"`
	TargetStart int     `json:"target_start"`
	TargetEnd   int     `json:"target_end"`
	Similarity  float64 `json:"similarity"`
}

// SimilarityMatchDTO records a pair of reports whose similarity exceeded the
// plagiarism threshold.  ReportID and OtherReportID are stored in canonical
// (lexicographic) order so that a match between A and B is a single record.
type SimilarityMatchDTO struct {
	ReportID      common.ID        `json:"report_id"`
	OtherReportID common.ID        `json:"other_report_id"`
	Score         float64          `json:"score"`
	Spans         []MatchedSpanDTO `json:"spans,omitempty"`
	DetectedAt    time.Time        `json:"detected_at"`
}

// SimilarityResultDTO is the plagiarism-detection component of an assessment.
type SimilarityResultDTO struct {
	PlagiarismSuspected bool                 `json:"plagiarism_suspected"`
	MaxScore            float64              `json:"max_score"`
	Matches             []SimilarityMatchDTO `json:"matches,omitempty"`
}

// AIDetectionDTO is the authorship-analysis component of an assessment.
// Probability is the calibrated chance the text is machine-generated,
// Confidence reflects how far the probability sits from the label thresholds,
// and Features exposes the raw detector signals for auditability.
type AIDetectionDTO struct {
	Probability float64            `json:"probability"`
	Confidence  float64            `json:"confidence"`
	Label       AuthorshipLabel    `json:"label"`
	Features    map[string]float64 `json:"features,omitempty"`
}

// ComplianceFindingDTO is a single triggered compliance rule.
type ComplianceFindingDTO struct {
	RuleID      string           `json:"rule_id"`
	Description string           `json:"description"`
	Severity    common.RiskLevel `json:"severity"`
	Excerpt     string           `json:"excerpt,omitempty"`
}

// ComplianceResultDTO is the compliance and geopolitical-risk component of an
// assessment.
type ComplianceResultDTO struct {
	Findings    []ComplianceFindingDTO      `json:"findings,omitempty"`
	RegionRisks map[string]common.RiskLevel `json:"region_risks,omitempty"`
	OverallRisk common.RiskLevel            `json:"overall_risk"`
}

// AssessmentDTO is the transport representation of one assessment run.
type AssessmentDTO struct {
	ID                 common.ID           `json:"id"`
	ReportID           common.ID           `json:"report_id"`
	Version            int                 `json:"version"`
	OverallScore       float64             `json:"overall_score"`
	Dimensions         []DimensionScoreDTO `json:"dimensions"`
	Similarity         SimilarityResultDTO `json:"similarity"`
	AIDetection        AIDetectionDTO      `json:"ai_detection"`
	Compliance         ComplianceResultDTO `json:"compliance"`
	DegradedDimensions []string            `json:"degraded_dimensions,omitempty"`
	DegradedCount      int                 `json:"degraded_count"`
	Narrative          string              `json:"narrative,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// ComparisonDTO is the pairwise comparison matrix returned by the compare
// operation: assessments of the requested reports plus the similarity scores
// between every pair.
type ComparisonDTO struct {
	Assessments []AssessmentDTO      `json:"assessments"`
	Pairs       []SimilarityMatchDTO `json:"pairs,omitempty"`
}
