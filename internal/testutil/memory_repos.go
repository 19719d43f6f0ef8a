// Package testutil provides shared in-memory fakes for unit tests: the three
// report-domain repositories plus recording stubs for the messaging and cache
// ports of the assessment service.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turtacn/EquityLens/internal/domain/report"
	"github.com/turtacn/EquityLens/pkg/errors"
	"github.com/turtacn/EquityLens/pkg/types/common"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

// MemoryReportRepository is a thread-safe in-memory report.Repository with
// the same optimistic-locking behaviour as the postgres implementation.
type MemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[common.ID]rtypes.ReportDTO
	latest  map[common.ID]int
}

// NewMemoryReportRepository returns an empty repository.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{
		reports: make(map[common.ID]rtypes.ReportDTO),
		latest:  make(map[common.ID]int),
	}
}

func (m *MemoryReportRepository) Save(_ context.Context, r *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.ID]; ok {
		return errors.New(errors.ErrCodeReportAlreadyExists, "report "+string(r.ID)+" already exists")
	}
	m.reports[r.ID] = r.ToDTO()
	m.latest[r.ID] = r.LatestAssessmentVersion()
	return nil
}

func (m *MemoryReportRepository) Update(_ context.Context, r *report.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reports[r.ID]
	if !ok {
		return errors.New(errors.ErrCodeReportNotFound, "report "+string(r.ID)+" not found")
	}
	// The aggregate bumped its version on mutation; the stored row must be
	// exactly one behind or the update lost a race.
	if r.Version != stored.Version+1 {
		return errors.New(errors.ErrCodeConflict, "stale report version")
	}
	m.reports[r.ID] = r.ToDTO()
	m.latest[r.ID] = r.LatestAssessmentVersion()
	return nil
}

func (m *MemoryReportRepository) FindByID(_ context.Context, id common.ID) (*report.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dto, ok := m.reports[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeReportNotFound, "report "+string(id)+" not found")
	}
	return report.FromDTO(dto, m.latest[id]), nil
}

func (m *MemoryReportRepository) List(_ context.Context, filter report.ListFilter, page common.Pagination) ([]*report.Report, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []rtypes.ReportDTO
	for _, dto := range m.reports {
		if filter.AnalystID != "" && dto.AnalystID != filter.AnalystID {
			continue
		}
		if filter.Status != "" && dto.Status != filter.Status {
			continue
		}
		if filter.Ticker != "" && !containsString(dto.Tickers, filter.Ticker) {
			continue
		}
		all = append(all, dto)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := page.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + page.PageSize
	if end > len(all) {
		end = len(all)
	}

	out := make([]*report.Report, 0, end-start)
	for _, dto := range all[start:end] {
		out = append(out, report.FromDTO(dto, m.latest[dto.ID]))
	}
	return out, total, nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// MemoryAssessmentRepository is an append-only in-memory
// report.AssessmentRepository.
type MemoryAssessmentRepository struct {
	mu   sync.RWMutex
	runs map[common.ID][]rtypes.AssessmentDTO
}

// NewMemoryAssessmentRepository returns an empty repository.
func NewMemoryAssessmentRepository() *MemoryAssessmentRepository {
	return &MemoryAssessmentRepository{runs: make(map[common.ID][]rtypes.AssessmentDTO)}
}

func (m *MemoryAssessmentRepository) Save(_ context.Context, a *report.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[a.ReportID] = append(m.runs[a.ReportID], a.ToDTO())
	sort.Slice(m.runs[a.ReportID], func(i, j int) bool {
		return m.runs[a.ReportID][i].Version < m.runs[a.ReportID][j].Version
	})
	return nil
}

func (m *MemoryAssessmentRepository) FindLatest(_ context.Context, reportID common.ID) (*report.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := m.runs[reportID]
	if len(runs) == 0 {
		return nil, errors.New(errors.ErrCodeAssessmentNotFound, "no assessment for report "+string(reportID))
	}
	dto := runs[len(runs)-1]
	return report.AssessmentFromDTO(dto, qualityAvailable(dto)), nil
}

func (m *MemoryAssessmentRepository) FindByVersion(_ context.Context, reportID common.ID, version int) (*report.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, dto := range m.runs[reportID] {
		if dto.Version == version {
			return report.AssessmentFromDTO(dto, qualityAvailable(dto)), nil
		}
	}
	return nil, errors.New(errors.ErrCodeAssessmentNotFound, "assessment version not found")
}

func (m *MemoryAssessmentRepository) History(_ context.Context, reportID common.ID) ([]*report.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*report.Assessment, 0, len(m.runs[reportID]))
	for _, dto := range m.runs[reportID] {
		out = append(out, report.AssessmentFromDTO(dto, qualityAvailable(dto)))
	}
	return out, nil
}

func qualityAvailable(dto rtypes.AssessmentDTO) bool {
	for _, d := range dto.Dimensions {
		if d.Available {
			return true
		}
	}
	return false
}

// MemoryMatchRepository is an in-memory report.SimilarityMatchRepository.
// Archived pairs stay in the map with their flag set, mirroring the archived_at
// stamp of the postgres implementation.
type MemoryMatchRepository struct {
	mu       sync.RWMutex
	matches  map[[2]common.ID]rtypes.SimilarityMatchDTO
	archived map[[2]common.ID]bool
}

// NewMemoryMatchRepository returns an empty repository.
func NewMemoryMatchRepository() *MemoryMatchRepository {
	return &MemoryMatchRepository{
		matches:  make(map[[2]common.ID]rtypes.SimilarityMatchDTO),
		archived: make(map[[2]common.ID]bool),
	}
}

func (m *MemoryMatchRepository) SaveAll(_ context.Context, matches []rtypes.SimilarityMatchDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, match := range matches {
		key := [2]common.ID{match.ReportID, match.OtherReportID}
		m.matches[key] = match
		delete(m.archived, key)
	}
	return nil
}

func (m *MemoryMatchRepository) FindByReport(_ context.Context, reportID common.ID) ([]rtypes.SimilarityMatchDTO, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rtypes.SimilarityMatchDTO
	for key, match := range m.matches {
		if m.archived[key] {
			continue
		}
		if key[0] == reportID || key[1] == reportID {
			out = append(out, match)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (m *MemoryMatchRepository) FindBetween(_ context.Context, a, b common.ID) (*rtypes.SimilarityMatchDTO, error) {
	if b < a {
		a, b = b, a
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := [2]common.ID{a, b}
	if match, ok := m.matches[key]; ok && !m.archived[key] {
		return &match, nil
	}
	return nil, nil
}

func (m *MemoryMatchRepository) ArchiveOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, match := range m.matches {
		if !m.archived[key] && match.DetectedAt.Before(cutoff) {
			m.archived[key] = true
			n++
		}
	}
	return n, nil
}

// ArchivedCount reports how many pairs the retention sweep has flagged.
func (m *MemoryMatchRepository) ArchivedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.archived)
}
