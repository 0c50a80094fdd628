package database

import (
	"time"
)

// Student represents an enrolled student and their face template
type Student struct {
	StudentID   string
	Name        string
	Class       string
	Embedding   []float32 // nil until enrollment photos are processed
	ImageCount  int       // number of enrollment images behind the template
	Method      string    // aggregation method used to build the template
	Model       string
	Dim         int
	LastCheckin *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Enrolled reports whether the student has a face template.
func (s *Student) Enrolled() bool {
	return len(s.Embedding) > 0
}

// Attendance record status values
const (
	StatusSuccess   = "success"
	StatusUncertain = "uncertain"
	StatusFailed    = "failed"
)

// AttendanceRecord represents a single check-in attempt at a gate
type AttendanceRecord struct {
	LogID        string
	StudentID    string // empty when no student was matched
	StudentName  string
	Class        string
	CheckinTime  time.Time
	Location     string
	Confidence   float64
	Status       string
	FaceDetected bool
	SnapshotPath string // empty when no snapshot was stored
}

// AttendanceStats summarizes check-in attempts for a period
type AttendanceStats struct {
	Total          int
	Success        int
	Uncertain      int
	Failed         int
	UniqueStudents int
}
