// Package repositories provides the PostgreSQL implementations of the report
// domain's repository ports.  All queries are parameterised; optimistic
// locking is enforced on the reports table via the version column.
package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

const reportColumns = `id, title, analyst_id, body, tickers, regions, word_count,
	status, latest_assessment_version, created_at, updated_at, version`

// ReportRepository implements report.Repository on a pgx pool.
type ReportRepository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewReportRepository constructs the repository.
func NewReportRepository(pool *pgxpool.Pool, log logging.Logger) *ReportRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ReportRepository{pool: pool, log: log}
}

func (r *ReportRepository) Save(ctx context.Context, rpt *report.Report) error {
	dto := rpt.ToDTO()
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING`,
		dto.ID, dto.Title, dto.AnalystID, dto.Text, dto.Tickers, dto.Regions,
		dto.WordCount, dto.Status, rpt.LatestAssessmentVersion(),
		dto.CreatedAt, dto.UpdatedAt, dto.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert report")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeReportAlreadyExists,
			fmt.Sprintf("report %s already exists", dto.ID))
	}
	return nil
}

func (r *ReportRepository) Update(ctx context.Context, rpt *report.Report) error {
	dto := rpt.ToDTO()
	// The aggregate bumped its version in memory; the row must still hold the
	// previous one or this update lost a race.
	tag, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET title = $2, body = $3, tickers = $4, regions = $5, word_count = $6,
		    status = $7, latest_assessment_version = $8, updated_at = $9,
		    version = $10
		WHERE id = $1 AND version = $10 - 1`,
		dto.ID, dto.Title, dto.Text, dto.Tickers, dto.Regions, dto.WordCount,
		dto.Status, rpt.LatestAssessmentVersion(), dto.UpdatedAt, dto.Version,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update report")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, dto.ID); err != nil {
			return err
		}
		return errors.New(errors.ErrCodeConflict,
			fmt.Sprintf("report %s was modified concurrently", dto.ID))
	}
	return nil
}

func (r *ReportRepository) FindByID(ctx context.Context, id common.ID) (*report.Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	return scanReport(row)
}

func (r *ReportRepository) List(ctx context.Context, filter report.ListFilter, page common.Pagination) ([]*report.Report, int64, error) {
	where, args := buildReportFilter(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count reports")
	}

	args = append(args, page.PageSize, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT `+reportColumns+` FROM reports%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list reports")
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		rpt, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rpt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read report rows")
	}
	return out, total, nil
}

// buildReportFilter renders the WHERE clause and its arguments for List.
func buildReportFilter(filter report.ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if filter.AnalystID != "" {
		args = append(args, filter.AnalystID)
		clauses = append(clauses, fmt.Sprintf("analyst_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Ticker != "" {
		args = append(args, filter.Ticker)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(tickers)", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanReport(row pgx.Row) (*report.Report, error) {
	var dto rtypes.ReportDTO
	var latestVersion int
	err := row.Scan(
		&dto.ID, &dto.Title, &dto.AnalystID, &dto.Text, &dto.Tickers, &dto.Regions,
		&dto.WordCount, &dto.Status, &latestVersion,
		&dto.CreatedAt, &dto.UpdatedAt, &dto.Version,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.ErrCodeReportNotFound, "report not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan report row")
	}
	return report.FromDTO(dto, latestVersion), nil
}
