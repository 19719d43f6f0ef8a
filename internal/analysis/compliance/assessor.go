package compliance

import (
	"fmt"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// excerptRadius is the number of characters of context captured around a
// rule's precondition hit when the requirement is missing.
const excerptRadius = 60

// Assessor runs the checklist and the geopolitical scan.  Stateless and safe
// for concurrent use.
type Assessor struct {
	log logging.Logger
}

// NewAssessor constructs an Assessor.
func NewAssessor(log logging.Logger) *Assessor {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Assessor{log: log}
}

// Assess evaluates the checklist over the text and grades the regions
// extracted at ingestion.  The overall risk is the maximum of all finding
// severities and region baselines, defaulting to LOW for a clean report.
func (a *Assessor) Assess(text string, regions []string) (report.ComplianceResult, error) {
	if text == "" {
		return report.ComplianceResult{}, errors.Validation("compliance assessment needs non-empty text")
	}

	result := report.ComplianceResult{OverallRisk: common.RiskLow}

	for _, r := range checklist {
		finding, fired := evaluate(r, text)
		if !fired {
			continue
		}
		result.Findings = append(result.Findings, finding)
		result.OverallRisk = maxRisk(result.OverallRisk, finding.Severity)
	}

	if len(regions) > 0 {
		result.RegionRisks = make(map[string]common.RiskLevel, len(regions))
		for _, region := range regions {
			risk, err := RegionRisk(region)
			if err != nil {
				// Conservative default for regions the table does not grade.
				a.log.Warn("region missing from baseline-risk table",
					logging.String("region", region))
				risk = common.RiskMedium
			}
			result.RegionRisks[region] = risk
			result.OverallRisk = maxRisk(result.OverallRisk, risk)
		}
	}

	if len(result.Findings) > 0 {
		a.log.Info("compliance findings",
			logging.Int("count", len(result.Findings)),
			logging.String("overall_risk", string(result.OverallRisk)),
		)
	}
	return result, nil
}

// RegionRisk returns the baseline risk grade for a canonical region name,
// or ErrCodeRegionUnknown when the table does not list it.
func RegionRisk(region string) (common.RiskLevel, error) {
	risk, ok := regionBaselineRisk[region]
	if !ok {
		return "", errors.New(errors.ErrCodeRegionUnknown,
			fmt.Sprintf("region %q has no baseline risk grade", region))
	}
	return risk, nil
}

// evaluate applies one rule to the text.  It fires when the rule's
// precondition holds (or is absent) and the requirement does not match.
func evaluate(r rule, text string) (rtypes.ComplianceFindingDTO, bool) {
	var excerpt string
	if r.applies != nil {
		loc := r.applies.FindStringIndex(text)
		if loc == nil {
			return rtypes.ComplianceFindingDTO{}, false
		}
		excerpt = around(text, loc)
	}
	if r.required.MatchString(text) {
		return rtypes.ComplianceFindingDTO{}, false
	}
	return rtypes.ComplianceFindingDTO{
		RuleID:      r.ID,
		Description: r.Description,
		Severity:    r.Severity,
		Excerpt:     excerpt,
	}, true
}

func around(text string, loc []int) string {
	start := loc[0] - excerptRadius
	if start < 0 {
		start = 0
	}
	end := loc[1] + excerptRadius
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
