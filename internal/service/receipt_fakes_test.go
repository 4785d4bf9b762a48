package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/internal/repository"
)

// memoryReceiptStore mimics ReceiptRepository, including the per-period sequence
// and the conditional WHERE clauses.
type memoryReceiptStore struct {
	mu        sync.Mutex
	receipts  map[string]*models.Receipt
	sequences map[string]int
	nextID    int

	// staleOnTransition flips the stored status right before a Transition runs.
	staleOnTransition models.ReceiptStatus
	// beforeCreate runs inside Create ahead of its guards, standing in for a concurrent writer.
	beforeCreate      func(m *memoryReceiptStore)
}

func newMemoryReceiptStore() *memoryReceiptStore {
	return &memoryReceiptStore{receipts: map[string]*models.Receipt{}, sequences: map[string]int{}}
}

func seqKey(internshipID string, p models.Period) string {
	return fmt.Sprintf("%s|%s", internshipID, p)
}

func (m *memoryReceiptStore) Create(_ context.Context, r *models.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hook := m.beforeCreate; hook != nil {
		m.beforeCreate = nil
		hook(m)
	}
	for _, other := range m.receipts {
		if other.InternshipID == r.InternshipID && other.Period() == r.Period() && other.Status == models.ReceiptStatusApproved {
			return repository.ErrPeriodClosed
		}
		if other.FileRef == r.FileRef {
			return repository.ErrFileRefInUse
		}
	}
	m.nextID++
	if r.ID == "" {
		r.ID = fmt.Sprintf("r-%d", m.nextID)
	}
	key := seqKey(r.InternshipID, r.Period())
	r.SupplementaryIndex = m.sequences[key]
	m.sequences[key]++
	cp := *r
	m.receipts[r.ID] = &cp
	return nil
}

func (m *memoryReceiptStore) GetByID(_ context.Context, id string) (*models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *memoryReceiptStore) ListByPeriod(_ context.Context, internshipID string, p models.Period) ([]models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Receipt
	for _, r := range m.receipts {
		if r.InternshipID == internshipID && r.Period() == p {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplementaryIndex < out[j].SupplementaryIndex })
	return out, nil
}

func (m *memoryReceiptStore) List(_ context.Context, filter models.ReceiptFilter) ([]models.Receipt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Receipt
	for _, r := range m.receipts {
		if filter.InternshipID != "" && r.InternshipID != filter.InternshipID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *memoryReceiptStore) UpdateDetails(_ context.Context, id string, amount *float64, description string, at time.Time) (*models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok || r.Status != models.ReceiptStatusPending {
		return nil, sql.ErrNoRows
	}
	r.Amount = amount
	r.Description = description
	r.UpdatedAt = at
	cp := *r
	return &cp, nil
}

func (m *memoryReceiptStore) Transition(_ context.Context, id string, from, to models.ReceiptStatus, reason *string, actorID string, at time.Time) (*models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if m.staleOnTransition != "" {
		r.Status = m.staleOnTransition
		m.staleOnTransition = ""
	}
	if r.Status != from {
		return nil, sql.ErrNoRows
	}
	if to == models.ReceiptStatusApproved {
		for _, other := range m.receipts {
			if other.ID != id && other.InternshipID == r.InternshipID && other.Period() == r.Period() && other.Status == models.ReceiptStatusApproved {
				return nil, repository.ErrDuplicateApproval
			}
		}
	}
	r.Status = to
	r.RejectionReason = reason
	r.DecidedBy = &actorID
	r.DecidedAt = &at
	r.UpdatedAt = at
	cp := *r
	return &cp, nil
}

func (m *memoryReceiptStore) UpdateAnalysis(_ context.Context, id string, analysis models.AnalysisResult, at time.Time) (*models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok || r.Status == models.ReceiptStatusApproved {
		return nil, sql.ErrNoRows
	}
	a := analysis
	r.Analysis = &a
	r.UpdatedAt = at
	cp := *r
	return &cp, nil
}

func (m *memoryReceiptStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[id]
	if !ok || r.Status == models.ReceiptStatusApproved {
		return sql.ErrNoRows
	}
	delete(m.receipts, id)
	return nil
}

func (m *memoryReceiptStore) CountByFileRef(_ context.Context, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.receipts {
		if r.FileRef == ref {
			count++
		}
	}
	return count, nil
}

// putLocked is put for hooks that already hold the lock.
func (m *memoryReceiptStore) putLocked(r models.Receipt) {
	m.receipts[r.ID] = &r
}

func (m *memoryReceiptStore) put(r models.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := seqKey(r.InternshipID, r.Period())
	if r.SupplementaryIndex >= m.sequences[key] {
		m.sequences[key] = r.SupplementaryIndex + 1
	}
	m.receipts[r.ID] = &r
}

// memoryUploads mimics ReceiptFileRepository.
type memoryUploads struct {
	mu        sync.Mutex
	files     map[string]models.ReceiptFile
	forgotten []string
}

func newMemoryUploads(files ...models.ReceiptFile) *memoryUploads {
	u := &memoryUploads{files: map[string]models.ReceiptFile{}}
	for _, f := range files {
		u.files[f.FileRef] = f
	}
	return u
}

func (u *memoryUploads) GetByRef(_ context.Context, ref string) (*models.ReceiptFile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	f, ok := u.files[ref]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &f, nil
}

func (u *memoryUploads) Forget(_ context.Context, ref string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.files, ref)
	u.forgotten = append(u.forgotten, ref)
	return nil
}

type stubInternships struct {
	items map[string]*models.Internship
	err   error
}

func (s *stubInternships) GetByID(_ context.Context, id string) (*models.Internship, error) {
	if s.err != nil {
		return nil, s.err
	}
	i, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *i
	return &cp, nil
}

func (s *stubInternships) ListCollecting(_ context.Context, p models.Period, filter models.InternshipFilter) ([]models.Internship, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Internship
	for _, i := range s.items {
		if filter.TeacherUserID != "" && !i.CoordinatedBy(filter.TeacherUserID) {
			continue
		}
		out = append(out, *i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

func strPtr(v string) *string { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func internshipFixture(id string, start time.Time) *models.Internship {
	return &models.Internship{
		ID:            id,
		StudentID:     "stu-" + id,
		TeacherID:     "t-1",
		StartDate:     start,
		Status:        models.InternshipStatusActive,
		StudentName:   "Student " + id,
		StudentUserID: strPtr("student-user-" + id),
		TeacherUserID: strPtr("teacher-user"),
		TeacherName:   "Coordinator",
		CompanyName:   "Acme",
	}
}
