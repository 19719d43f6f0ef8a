// Package compliance implements the rule-based compliance checklist and the
// geopolitical risk scan.  Both are static: the checklist is fixed at compile
// time and the region table maps canonical region names to baseline risk
// grades.  No external service is involved, so this analyzer never degrades.
package compliance

import (
	"regexp"

	"github.com/turtacn/EquityLens/pkg/types/common"
)

// rule is one checklist entry.  Matched reports the rule's precondition;
// missing is the requirement that must then also hold.  A finding is emitted
// when the precondition holds and the requirement does not.
type rule struct {
	ID          string
	Description string
	Severity    common.RiskLevel
	// applies reports whether the rule is triggered for this text at all.
	// nil means the rule always applies.
	applies *regexp.Regexp
	// required must match somewhere in the text, otherwise the rule fires.
	required *regexp.Regexp
}

// The fixed checklist.  Rule IDs are stable identifiers referenced by
// downstream consumers; never renumber them.
var checklist = []rule{
	{
		ID:          "CMP-RISK-001",
		Description: "report must include a risk disclosure section",
		Severity:    common.RiskHigh,
		required: regexp.MustCompile(
			`(?i)\b(?:risk factors?|key risks?|downside risks?|risks? to (?:our|the) (?:view|thesis|call))\b`),
	},
	{
		ID:          "CMP-COI-002",
		Description: "report must carry a conflict-of-interest statement",
		Severity:    common.RiskMedium,
		required: regexp.MustCompile(
			`(?i)\b(?:conflicts? of interest|analyst certification|no position in|do(?:es)? not hold (?:any )?(?:position|shares))\b`),
	},
	{
		ID:          "CMP-BASIS-003",
		Description: "a recommendation must state its valuation basis",
		Severity:    common.RiskHigh,
		applies: regexp.MustCompile(
			`(?i)\b(?:buy|sell|hold|accumulate|reduce|overweight|underweight|target price)\b`),
		required: regexp.MustCompile(
			`(?i)\b(?:valuation|dcf|discounted cash ?flow|(?:p/?e|ev/ebitda|price.to.book) multiple|sum.of.the.parts|comparable|because|driven by|based on)\b`),
	},
	{
		ID:          "CMP-TIME-004",
		Description: "projections must be anchored to a dated timeline",
		Severity:    common.RiskMedium,
		applies: regexp.MustCompile(
			`(?i)\b(?:forecast|project(?:ed|ion)?|estimate|expect(?:ed)?|guidance|outlook)\b`),
		required: regexp.MustCompile(
			`(?i)\b(?:20\d{2}|q[1-4]|fy ?\d{2,4}|h[12]|next (?:quarter|year)|(?:twelve|12).month)\b`),
	},
}

// regionBaselineRisk grades each canonical region the ingest extractor can
// produce.  The grades are baseline jurisdiction risk, not a market view;
// they feed the overall-risk roll-up together with checklist findings.
var regionBaselineRisk = map[string]common.RiskLevel{
	"united_states":  common.RiskLow,
	"united_kingdom": common.RiskLow,
	"european_union": common.RiskLow,
	"japan":          common.RiskLow,
	"india":          common.RiskMedium,
	"south_korea":    common.RiskMedium,
	"brazil":         common.RiskMedium,
	"southeast_asia": common.RiskMedium,
	"china":          common.RiskHigh,
	"taiwan":         common.RiskHigh,
	"middle_east":    common.RiskHigh,
	"russia":         common.RiskCritical,
}

// riskRank orders risk levels for max() roll-ups.
var riskRank = map[common.RiskLevel]int{
	common.RiskLow:      0,
	common.RiskMedium:   1,
	common.RiskHigh:     2,
	common.RiskCritical: 3,
}

func maxRisk(a, b common.RiskLevel) common.RiskLevel {
	if riskRank[b] > riskRank[a] {
		return b
	}
	return a
}
