// Package report renders one day of attendance as shareable documents.
package report

import (
	"sort"
	"time"

	"github.com/kozaktomas/facegate/internal/database"
)

// DaySheet is one day of attendance prepared for rendering.
type DaySheet struct {
	Date     time.Time
	Location string
	Stats    *database.AttendanceStats
	Records  []database.AttendanceRecord
}

// chronological returns the records ordered oldest first, regardless of
// input order (the store hands them out newest first).
func (s *DaySheet) chronological() []database.AttendanceRecord {
	records := make([]database.AttendanceRecord, len(s.Records))
	copy(records, s.Records)
	sort.Slice(records, func(i, j int) bool {
		return records[i].CheckinTime.Before(records[j].CheckinTime)
	})
	return records
}

// successRate returns the share of successful attempts in percent.
func (s *DaySheet) successRate() float64 {
	if s.Stats == nil || s.Stats.Total == 0 {
		return 0
	}
	return float64(s.Stats.Success) / float64(s.Stats.Total) * 100
}
