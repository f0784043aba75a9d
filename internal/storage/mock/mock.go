// Package mock provides in-memory implementations of the storage
// contracts for tests.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/classeye/classeye/internal/attendance"
	"github.com/classeye/classeye/internal/storage"
)

// StudentStore is an in-memory storage.StudentStore.
type StudentStore struct {
	mu       sync.RWMutex
	students map[string]storage.Student

	// Error injection
	GetError    error
	ListError   error
	UpsertError error
	DeleteError error
}

// NewStudentStore creates an empty student store.
func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[string]storage.Student)}
}

var _ storage.StudentStore = (*StudentStore)(nil)

// AddStudent seeds the store.
func (m *StudentStore) AddStudent(s storage.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
}

// Get retrieves a student by ID.
func (m *StudentStore) Get(ctx context.Context, id string) (*storage.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// ListByClass returns the students of one class ordered by ID.
func (m *StudentStore) ListByClass(ctx context.Context, classID string) ([]storage.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []storage.Student
	for _, s := range m.students {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// All returns every student ordered by class and ID.
func (m *StudentStore) All(ctx context.Context) ([]storage.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]storage.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClassID != out[j].ClassID {
			return out[i].ClassID < out[j].ClassID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Count returns the number of students.
func (m *StudentStore) Count(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// Upsert inserts or replaces a student, embedding included.
func (m *StudentStore) Upsert(ctx context.Context, s storage.Student) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
	return nil
}

// UpsertProfile updates identity fields, preserving any stored
// embedding.
func (m *StudentStore) UpsertProfile(ctx context.Context, s storage.Student) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.students[s.ID]; ok {
		s.Embedding = existing.Embedding
		s.Dim = existing.Dim
		s.Model = existing.Model
	}
	m.students[s.ID] = s
	return nil
}

// Delete removes a student.
func (m *StudentStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.students, id)
	return nil
}

// AttendanceStore is an in-memory storage.AttendanceStore. Its
// conflict behavior mirrors the PostgreSQL implementation: manual
// records always win, automatic records never overwrite a manual
// override.
type AttendanceStore struct {
	mu      sync.RWMutex
	records map[string]attendance.Record

	// Error injection
	RecordError error
	ListError   error
	DeleteError error
}

// NewAttendanceStore creates an empty attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[string]attendance.Record)}
}

var (
	_ storage.AttendanceStore = (*AttendanceStore)(nil)
	_ attendance.Sink         = (*AttendanceStore)(nil)
)

func recordKey(classID, date, studentID string) string {
	return classID + "|" + date + "|" + studentID
}

// Record upserts one attendance record.
func (m *AttendanceStore) Record(ctx context.Context, rec attendance.Record) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey(rec.ClassID, rec.Date, rec.StudentID)
	if existing, ok := m.records[key]; ok {
		if rec.Source != attendance.SourceManual && existing.Source != attendance.SourceAutomatic {
			return nil
		}
	}
	m.records[key] = rec
	return nil
}

// Delete removes the record of one student for one class and date.
func (m *AttendanceStore) Delete(ctx context.Context, classID, date, studentID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, recordKey(classID, date, studentID))
	return nil
}

// ListByClassDate returns the records of one class on one date,
// ordered by marking time.
func (m *AttendanceStore) ListByClassDate(ctx context.Context, classID, date string) ([]attendance.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Record
	for _, rec := range m.records {
		if rec.ClassID == classID && rec.Date == date {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

// Range returns the records of one class between two dates inclusive.
func (m *AttendanceStore) Range(ctx context.Context, classID, from, to string) ([]attendance.Record, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Record
	for _, rec := range m.records {
		if rec.ClassID == classID && rec.Date >= from && rec.Date <= to {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []attendance.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date < recs[j].Date
		}
		if recs[i].Time != recs[j].Time {
			return recs[i].Time < recs[j].Time
		}
		return recs[i].StudentID < recs[j].StudentID
	})
}

// CountPresent returns how many students are marked present for a
// class on a date.
func (m *AttendanceStore) CountPresent(ctx context.Context, classID, date string) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.records {
		if rec.ClassID == classID && rec.Date == date && rec.Status == attendance.StatusPresent {
			count++
		}
	}
	return count, nil
}

// ClassStore is an in-memory storage.ClassStore.
type ClassStore struct {
	mu      sync.RWMutex
	classes map[string]storage.Class

	// Error injection
	GetError    error
	ListError   error
	UpsertError error
}

// NewClassStore creates an empty class store.
func NewClassStore() *ClassStore {
	return &ClassStore{classes: make(map[string]storage.Class)}
}

var _ storage.ClassStore = (*ClassStore)(nil)

// AddClass seeds the store.
func (m *ClassStore) AddClass(c storage.Class) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c.ID] = c
}

// Get retrieves a class by ID.
func (m *ClassStore) Get(ctx context.Context, id string) (*storage.Class, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// List returns every class ordered by ID.
func (m *ClassStore) List(ctx context.Context) ([]storage.Class, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]storage.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert inserts or updates a class.
func (m *ClassStore) Upsert(ctx context.Context, c storage.Class) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c.ID] = c
	return nil
}
