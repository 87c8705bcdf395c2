package attendance

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gathering-portal/backend/internal/models"
)

type tripleKey struct {
	subject  uuid.UUID
	category models.Category
	day      string
}

// memStore is an in-memory TokenStore, RecordStore and RecordReader whose
// insert is atomic on (subject, category, day) like the unique constraint,
// and opens the follow-up of a report-required record in the same step.
type memStore struct {
	mu        sync.Mutex
	tokens    map[string]models.AttendanceToken
	records   map[tripleKey]models.AttendanceRecord
	users     map[uuid.UUID]models.User
	followUps map[uuid.UUID]bool
	inserts   int

	failInsert error
}

func newMemStore() *memStore {
	return &memStore{
		tokens:    map[string]models.AttendanceToken{},
		records:   map[tripleKey]models.AttendanceRecord{},
		users:     map[uuid.UUID]models.User{},
		followUps: map[uuid.UUID]bool{},
	}
}

func (m *memStore) CreateToken(_ context.Context, t *models.AttendanceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.Value] = *t
	return nil
}

func (m *memStore) GetToken(_ context.Context, value string) (*models.AttendanceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[value]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memStore) InsertRecord(_ context.Context, rec *models.AttendanceRecord) (InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return InsertResult{}, m.failInsert
	}
	k := tripleKey{rec.SubjectID, rec.Category, rec.DayKey}
	if existing, ok := m.records[k]; ok {
		return InsertResult{Outcome: Conflict, Record: &existing}, nil
	}
	m.records[k] = *rec
	if rec.ReportRequired {
		m.followUps[rec.ID] = true
	}
	m.inserts++
	stored := *rec
	return InsertResult{Outcome: Inserted, Record: &stored}, nil
}

func (m *memStore) ListRecords(_ context.Context, f Filter, limit, offset int) ([]models.AttendanceRecordView, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.views(f)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *memStore) ListAllRecords(_ context.Context, f Filter) ([]models.AttendanceRecordView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views(f), nil
}

// views returns matching rows in listing order; callers hold mu.
func (m *memStore) views(f Filter) []models.AttendanceRecordView {
	var all []models.AttendanceRecordView
	for _, r := range m.records {
		if f.Date != "" && r.DayKey != f.Date {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		u := m.users[r.SubjectID]
		all = append(all, models.AttendanceRecordView{AttendanceRecord: r, FullName: u.FullName, Email: u.Email, GroupName: u.GroupName, CellName: u.CellName})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].RecordedAt.Equal(all[j].RecordedAt) {
			return all[i].RecordedAt.After(all[j].RecordedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})
	return all
}

func (m *memStore) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type recordingNotifier struct {
	mu   sync.Mutex
	recs []models.AttendanceRecord
	err  error
}

func (n *recordingNotifier) Publish(_ context.Context, rec *models.AttendanceRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recs = append(n.recs, *rec)
	return n.err
}

func (m *memStore) hasFollowUp(recordID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.followUps[recordID]
}

func (m *memStore) followUpCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.followUps)
}

type recordingFollowUps struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (f *recordingFollowUps) EnqueueFollowUp(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return f.err
}

var errBoom = errors.New("connection reset")
