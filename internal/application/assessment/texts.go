package assessment

import (
	"context"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/pkg/types/common"
)

// ReportTexts adapts the report repository to the similarity analyzer's
// text-lookup port, used for span localisation against matched reports.
type ReportTexts struct {
	repo report.Repository
}

// NewReportTexts constructs the adapter.
func NewReportTexts(repo report.Repository) *ReportTexts {
	return &ReportTexts{repo: repo}
}

func (t *ReportTexts) TextByID(ctx context.Context, id common.ID) (string, error) {
	rpt, err := t.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return rpt.Text, nil
}
