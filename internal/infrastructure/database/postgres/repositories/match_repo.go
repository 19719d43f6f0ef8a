package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// MatchRepository implements report.SimilarityMatchRepository on a pgx pool.
// Pairs are stored once, in canonical order; the schema enforces it with a
// check constraint.
type MatchRepository struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewMatchRepository constructs the repository.
func NewMatchRepository(pool *pgxpool.Pool, log logging.Logger) *MatchRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MatchRepository{pool: pool, log: log}
}

func (r *MatchRepository) SaveAll(ctx context.Context, matches []rtypes.SimilarityMatchDTO) error {
	if len(matches) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range matches {
		spans, err := json.Marshal(m.Spans)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode match spans")
		}
		batch.Queue(`
			INSERT INTO similarity_matches (report_id, other_report_id, score, spans, detected_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (report_id, other_report_id)
			DO UPDATE SET score = EXCLUDED.score, spans = EXCLUDED.spans,
			              detected_at = EXCLUDED.detected_at, archived_at = NULL`,
			m.ReportID, m.OtherReportID, m.Score, spans, m.DetectedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range matches {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert similarity match")
		}
	}
	return nil
}

func (r *MatchRepository) FindByReport(ctx context.Context, reportID common.ID) ([]rtypes.SimilarityMatchDTO, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT report_id, other_report_id, score, spans, detected_at
		FROM similarity_matches
		WHERE (report_id = $1 OR other_report_id = $1) AND archived_at IS NULL
		ORDER BY score DESC`, reportID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query similarity matches")
	}
	defer rows.Close()

	var out []rtypes.SimilarityMatchDTO
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read match rows")
	}
	return out, nil
}

func (r *MatchRepository) FindBetween(ctx context.Context, a, b common.ID) (*rtypes.SimilarityMatchDTO, error) {
	if b < a {
		a, b = b, a
	}
	row := r.pool.QueryRow(ctx, `
		SELECT report_id, other_report_id, score, spans, detected_at
		FROM similarity_matches
		WHERE report_id = $1 AND other_report_id = $2 AND archived_at IS NULL`, a, b)

	m, err := scanMatch(row)
	if errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ArchiveOlderThan stamps rows past the retention window instead of deleting
// them: archived pairs disappear from reads but the record survives for
// audits.  Re-detection through SaveAll clears the stamp.
func (r *MatchRepository) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE similarity_matches SET archived_at = NOW()
		WHERE detected_at < $1 AND archived_at IS NULL`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to archive similarity matches")
	}
	if n := tag.RowsAffected(); n > 0 {
		r.log.Info("archived similarity matches",
			logging.Int64("rows", n),
			logging.String("cutoff", cutoff.Format(time.RFC3339)),
		)
		return n, nil
	}
	return 0, nil
}

func scanMatch(row pgx.Row) (rtypes.SimilarityMatchDTO, error) {
	var m rtypes.SimilarityMatchDTO
	var spans []byte
	err := row.Scan(&m.ReportID, &m.OtherReportID, &m.Score, &spans, &m.DetectedAt)
	if err == pgx.ErrNoRows {
		return m, errors.New(errors.ErrCodeNotFound, "similarity match not found")
	}
	if err != nil {
		return m, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan match row")
	}
	if err := json.Unmarshal(spans, &m.Spans); err != nil {
		return m, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode match spans")
	}
	return m, nil
}
