// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
)

// MockStudentReader is a mock implementation of database.StudentReader
type MockStudentReader struct {
	mu       sync.RWMutex
	students map[string]*database.Student

	// Error injection
	GetError             error
	HasError             error
	CountError           error
	ListError            error
	ListForMatchingError error
	FindSimilarError     error
}

// NewMockStudentReader creates a new mock student reader
func NewMockStudentReader() *MockStudentReader {
	return &MockStudentReader{
		students: make(map[string]*database.Student),
	}
}

// AddStudent adds a student to the mock store
func (m *MockStudentReader) AddStudent(student database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[student.StudentID] = &student
}

// Get retrieves a student by ID
func (m *MockStudentReader) Get(ctx context.Context, studentID string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.students[studentID], nil
}

// Has checks if a student exists
func (m *MockStudentReader) Has(ctx context.Context, studentID string) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.students[studentID]
	return ok, nil
}

// Count returns the total number of students
func (m *MockStudentReader) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

// CountEnrolled returns the number of students with a face template
func (m *MockStudentReader) CountEnrolled(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.students {
		if s.Enrolled() {
			count++
		}
	}
	return count, nil
}

// List returns students matching the query and class filter, ordered by ID
func (m *MockStudentReader) List(ctx context.Context, query, class string, limit, offset int) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	normalized := database.NormalizeName(query)
	var matched []database.Student
	for _, s := range m.students {
		if class != "" && s.Class != class {
			continue
		}
		if normalized != "" &&
			!strings.Contains(database.NormalizeName(s.Name), normalized) &&
			!strings.Contains(strings.ToLower(s.StudentID), normalized) {
			continue
		}
		matched = append(matched, *s)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StudentID < matched[j].StudentID
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ListForMatching returns all enrolled students, ordered by ID
func (m *MockStudentReader) ListForMatching(ctx context.Context) ([]database.Student, error) {
	if m.ListForMatchingError != nil {
		return nil, m.ListForMatchingError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.Student
	for _, s := range m.students {
		if s.Enrolled() {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StudentID < result[j].StudentID
	})
	return result, nil
}

// FindSimilar finds enrolled students by cosine distance to the embedding
func (m *MockStudentReader) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]database.Student, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		student  database.Student
		distance float64
	}
	var candidates []scored
	for _, s := range m.students {
		if !s.Enrolled() {
			continue
		}
		candidates = append(candidates, scored{*s, database.CosineDistance(embedding, s.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].student.StudentID < candidates[j].student.StudentID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	students := make([]database.Student, 0, len(candidates))
	distances := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		students = append(students, c.student)
		distances = append(distances, c.distance)
	}
	return students, distances, nil
}

// MockStudentWriter is a mock implementation of database.StudentWriter
type MockStudentWriter struct {
	*MockStudentReader

	// Track calls
	SaveCalls              []database.Student
	UpdateProfileCalls     []UpdateProfileCall
	UpdateEmbeddingCalls   []UpdateEmbeddingCall
	UpdateLastCheckinCalls []UpdateLastCheckinCall
	DeleteCalls            []string

	// Error injection
	SaveError              error
	UpdateProfileError     error
	UpdateEmbeddingError   error
	UpdateLastCheckinError error
	DeleteError            error
}

// UpdateProfileCall tracks an UpdateProfile call
type UpdateProfileCall struct {
	StudentID string
	Name      string
	Class     string
}

// UpdateEmbeddingCall tracks an UpdateEmbedding call
type UpdateEmbeddingCall struct {
	StudentID  string
	Embedding  []float32
	ImageCount int
	Method     string
	Model      string
	Dim        int
}

// UpdateLastCheckinCall tracks an UpdateLastCheckin call
type UpdateLastCheckinCall struct {
	StudentID string
	At        time.Time
}

// NewMockStudentWriter creates a new mock student writer
func NewMockStudentWriter() *MockStudentWriter {
	return &MockStudentWriter{
		MockStudentReader: NewMockStudentReader(),
	}
}

// Save stores a student (upsert by student ID)
func (m *MockStudentWriter) Save(ctx context.Context, student *database.Student) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.SaveCalls = append(m.SaveCalls, *student)
	m.AddStudent(*student)
	return nil
}

// UpdateProfile updates name and class
func (m *MockStudentWriter) UpdateProfile(ctx context.Context, studentID, name, class string) error {
	if m.UpdateProfileError != nil {
		return m.UpdateProfileError
	}
	m.UpdateProfileCalls = append(m.UpdateProfileCalls, UpdateProfileCall{
		StudentID: studentID,
		Name:      name,
		Class:     class,
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[studentID]; ok {
		s.Name = name
		s.Class = class
	}
	return nil
}

// UpdateEmbedding replaces the student's face template
func (m *MockStudentWriter) UpdateEmbedding(ctx context.Context, studentID string, embedding []float32, imageCount int, method, model string, dim int) error {
	if m.UpdateEmbeddingError != nil {
		return m.UpdateEmbeddingError
	}
	m.UpdateEmbeddingCalls = append(m.UpdateEmbeddingCalls, UpdateEmbeddingCall{
		StudentID:  studentID,
		Embedding:  embedding,
		ImageCount: imageCount,
		Method:     method,
		Model:      model,
		Dim:        dim,
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[studentID]; ok {
		s.Embedding = embedding
		s.ImageCount = imageCount
		s.Method = method
		s.Model = model
		s.Dim = dim
	}
	return nil
}

// UpdateLastCheckin records the time of the latest successful check-in
func (m *MockStudentWriter) UpdateLastCheckin(ctx context.Context, studentID string, at time.Time) error {
	if m.UpdateLastCheckinError != nil {
		return m.UpdateLastCheckinError
	}
	m.UpdateLastCheckinCalls = append(m.UpdateLastCheckinCalls, UpdateLastCheckinCall{
		StudentID: studentID,
		At:        at,
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[studentID]; ok {
		t := at
		s.LastCheckin = &t
	}
	return nil
}

// Delete removes a student
func (m *MockStudentWriter) Delete(ctx context.Context, studentID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.DeleteCalls = append(m.DeleteCalls, studentID)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.students, studentID)
	return nil
}

// MockAttendanceWriter is a mock implementation of database.AttendanceWriter
type MockAttendanceWriter struct {
	mu      sync.RWMutex
	records map[string]*database.AttendanceRecord

	logCounter int

	// Track calls
	SaveRecordCalls []database.AttendanceRecord

	// Error injection
	SaveRecordError    error
	GetRecordError     error
	ListByDateError    error
	ListByStudentError error
	StatsError         error
}

// NewMockAttendanceWriter creates a new mock attendance writer
func NewMockAttendanceWriter() *MockAttendanceWriter {
	return &MockAttendanceWriter{
		records: make(map[string]*database.AttendanceRecord),
	}
}

// AddRecord adds a record to the mock store
func (m *MockAttendanceWriter) AddRecord(record database.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.LogID] = &record
}

// SaveRecord stores an attendance record, assigning a log ID when empty
func (m *MockAttendanceWriter) SaveRecord(ctx context.Context, record *database.AttendanceRecord) error {
	if m.SaveRecordError != nil {
		return m.SaveRecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.LogID == "" {
		m.logCounter++
		record.LogID = fmt.Sprintf("log-%d", m.logCounter)
	}
	if record.CheckinTime.IsZero() {
		record.CheckinTime = time.Now()
	}
	m.SaveRecordCalls = append(m.SaveRecordCalls, *record)
	stored := *record
	m.records[record.LogID] = &stored
	return nil
}

// GetRecord retrieves an attendance record by log ID
func (m *MockAttendanceWriter) GetRecord(ctx context.Context, logID string) (*database.AttendanceRecord, error) {
	if m.GetRecordError != nil {
		return nil, m.GetRecordError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[logID], nil
}

// ListByDate returns records for the calendar day, newest first
func (m *MockAttendanceWriter) ListByDate(ctx context.Context, day time.Time, location string) ([]database.AttendanceRecord, error) {
	if m.ListByDateError != nil {
		return nil, m.ListByDateError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var result []database.AttendanceRecord
	for _, r := range m.records {
		if r.CheckinTime.Before(dayStart) || !r.CheckinTime.Before(dayEnd) {
			continue
		}
		if location != "" && r.Location != location {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CheckinTime.After(result[j].CheckinTime)
	})
	return result, nil
}

// ListByStudent returns a student's records since the given time, newest first
func (m *MockAttendanceWriter) ListByStudent(ctx context.Context, studentID string, since time.Time) ([]database.AttendanceRecord, error) {
	if m.ListByStudentError != nil {
		return nil, m.ListByStudentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.AttendanceRecord
	for _, r := range m.records {
		if r.StudentID != studentID || r.CheckinTime.Before(since) {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CheckinTime.After(result[j].CheckinTime)
	})
	return result, nil
}

// StatsByDate aggregates check-in counts for the calendar day
func (m *MockAttendanceWriter) StatsByDate(ctx context.Context, day time.Time, location string) (*database.AttendanceStats, error) {
	if m.StatsError != nil {
		return nil, m.StatsError
	}

	records, err := m.ListByDate(ctx, day, location)
	if err != nil {
		return nil, err
	}

	stats := &database.AttendanceStats{}
	seen := make(map[string]struct{})
	for _, r := range records {
		stats.Total++
		switch r.Status {
		case database.StatusSuccess:
			stats.Success++
			if _, ok := seen[r.StudentID]; !ok {
				seen[r.StudentID] = struct{}{}
				stats.UniqueStudents++
			}
		case database.StatusUncertain:
			stats.Uncertain++
		case database.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// Verify interface compliance
var _ database.StudentReader = (*MockStudentReader)(nil)
var _ database.StudentWriter = (*MockStudentWriter)(nil)
var _ database.AttendanceReader = (*MockAttendanceWriter)(nil)
var _ database.AttendanceWriter = (*MockAttendanceWriter)(nil)
