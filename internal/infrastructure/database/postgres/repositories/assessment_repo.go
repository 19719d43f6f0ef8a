package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

const assessmentColumns = `id, report_id, version, overall_score, quality_available,
	dimensions, similarity, ai_detection, compliance, degraded_dimensions,
	narrative, created_at`

// AssessmentRepository implements report.AssessmentRepository on a pgx pool.
// Component payloads are stored as JSONB; rows are append-only.
type AssessmentRepository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(pool *pgxpool.Pool, log logging.Logger) *AssessmentRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AssessmentRepository{pool: pool, log: log}
}

func (r *AssessmentRepository) Save(ctx context.Context, a *report.Assessment) error {
	dto := a.ToDTO()

	dims, err := json.Marshal(dto.Dimensions)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode dimensions")
	}
	sim, err := json.Marshal(dto.Similarity)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode similarity result")
	}
	ai, err := json.Marshal(dto.AIDetection)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode detection result")
	}
	comp, err := json.Marshal(dto.Compliance)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode compliance result")
	}

	degraded := dto.DegradedDimensions
	if degraded == nil {
		degraded = []string{}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		dto.ID, dto.ReportID, dto.Version, dto.OverallScore, a.QualityAvailable,
		dims, sim, ai, comp, degraded, dto.Narrative, dto.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert assessment")
	}
	return nil
}

func (r *AssessmentRepository) FindLatest(ctx context.Context, reportID common.ID) (*report.Assessment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assessmentColumns+` FROM assessments
		WHERE report_id = $1 ORDER BY version DESC LIMIT 1`, reportID)
	return scanAssessment(row)
}

func (r *AssessmentRepository) FindByVersion(ctx context.Context, reportID common.ID, version int) (*report.Assessment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assessmentColumns+` FROM assessments
		WHERE report_id = $1 AND version = $2`, reportID, version)
	return scanAssessment(row)
}

func (r *AssessmentRepository) History(ctx context.Context, reportID common.ID) ([]*report.Assessment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assessmentColumns+` FROM assessments
		WHERE report_id = $1 ORDER BY version ASC`, reportID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query assessment history")
	}
	defer rows.Close()

	var out []*report.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read assessment rows")
	}
	return out, nil
}

func scanAssessment(row pgx.Row) (*report.Assessment, error) {
	var dto rtypes.AssessmentDTO
	var qualityAvailable bool
	var dims, sim, ai, comp []byte

	err := row.Scan(
		&dto.ID, &dto.ReportID, &dto.Version, &dto.OverallScore, &qualityAvailable,
		&dims, &sim, &ai, &comp, &dto.DegradedDimensions,
		&dto.Narrative, &dto.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.ErrCodeAssessmentNotFound, "assessment not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan assessment row")
	}

	for name, pair := range map[string]struct {
		raw []byte
		dst interface{}
	}{
		"dimensions":   {dims, &dto.Dimensions},
		"similarity":   {sim, &dto.Similarity},
		"ai_detection": {ai, &dto.AIDetection},
		"compliance":   {comp, &dto.Compliance},
	} {
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal,
				fmt.Sprintf("failed to decode assessment %s payload", name))
		}
	}
	dto.DegradedCount = len(dto.DegradedDimensions)
	return report.AssessmentFromDTO(dto, qualityAvailable), nil
}
