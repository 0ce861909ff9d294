package models

import "time"

// Snapshot is the whole application state as written to the durable slot.
// Field names are part of the on-disk format.
type Snapshot struct {
	Posts                  []Post         `json:"posts"`
	Attendance             []Attendance   `json:"attendance"`
	Offerings              []Offering     `json:"offerings"`
	Files                  []File         `json:"files"`
	Registrations          []Registration `json:"registrations"`
	AccumulatedBalance     float64        `json:"accumulated_balance"`
	LastMonthClosure       *time.Time     `json:"last_month_closure"`
	AttendanceClosedAt     *time.Time     `json:"attendance_closed_at"`
	AllowEditsAfterClosure bool           `json:"allow_edits_after_closure"`
	Students               []Student      `json:"students"`
}

// DefaultSnapshot returns the empty state used when nothing is stored.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Posts:         []Post{},
		Attendance:    []Attendance{},
		Offerings:     []Offering{},
		Files:         []File{},
		Registrations: []Registration{},
		Students:      []Student{},
	}
}
