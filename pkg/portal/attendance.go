package portal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/models"
)

const dayLayout = "2006-01-02"

// ErrAttendanceClosed is returned when a helper edits attendance after closure.
var ErrAttendanceClosed = fmt.Errorf("%w: attendance is closed", feed.ErrUnauthorized)

func requireResolved(v models.Viewer) error {
	if !v.Resolved() {
		return feed.ErrUnauthenticated
	}
	return nil
}

func requireCoordinator(v models.Viewer) error {
	if err := requireResolved(v); err != nil {
		return err
	}
	if !v.IsCoordinator() {
		return fmt.Errorf("%w: coordinator only", feed.ErrUnauthorized)
	}
	return nil
}

// AddStudent adds a child to the roster.
func (s *State) AddStudent(viewer models.Viewer, name string) (models.Student, error) {
	var out models.Student
	err := s.mutate("student_add", func() error {
		if err := requireCoordinator(viewer); err != nil {
			return err
		}
		n := strings.TrimSpace(name)
		if n == "" {
			return fmt.Errorf("%w: student name is empty", feed.ErrInvalidInput)
		}
		out = models.Student{ID: s.newID(), Name: n, CreatedAt: s.now().UTC()}
		s.students = append(s.students, out)
		return nil
	})
	return out, err
}

// Students returns the roster sorted by name.
func (s *State) Students() []models.Student {
	s.mu.Lock()
	out := append([]models.Student{}, s.students...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// MarkAttendance upserts the record for a student on a day.
func (s *State) MarkAttendance(viewer models.Viewer, studentID, day string, present bool) (models.Attendance, error) {
	var out models.Attendance
	err := s.mutate("attendance_mark", func() error {
		if err := requireResolved(viewer); err != nil {
			return err
		}
		d, err := time.Parse(dayLayout, strings.TrimSpace(day))
		if err != nil {
			return fmt.Errorf("%w: day must be YYYY-MM-DD", feed.ErrInvalidInput)
		}
		if !s.hasStudentLocked(studentID) {
			return fmt.Errorf("%w: student %s", feed.ErrNotFound, studentID)
		}
		if s.attendanceClosedAt != nil && !viewer.IsCoordinator() && !s.allowEditsAfterClosure {
			return ErrAttendanceClosed
		}
		out = models.Attendance{
			StudentID:  studentID,
			Day:        d.Format(dayLayout),
			Present:    present,
			RecordedBy: strings.TrimSpace(viewer.Name),
			Role:       viewer.Role,
			CreatedAt:  s.now().UTC(),
		}
		for i, a := range s.attendance {
			if a.StudentID == out.StudentID && a.Day == out.Day {
				s.attendance[i] = out
				return nil
			}
		}
		s.attendance = append(s.attendance, out)
		return nil
	})
	return out, err
}

// AttendanceFor returns the records for a day, or all records when day is empty.
func (s *State) AttendanceFor(day string) []models.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Attendance{}
	for _, a := range s.attendance {
		if day == "" || a.Day == day {
			out = append(out, a)
		}
	}
	return out
}

// AttendanceStatus is the closure state of the attendance sheet.
type AttendanceStatus struct {
	ClosedAt               *time.Time `json:"closed_at"`
	AllowEditsAfterClosure bool       `json:"allow_edits_after_closure"`
}

func (s *State) AttendanceStatus() AttendanceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AttendanceStatus{ClosedAt: copyTime(s.attendanceClosedAt), AllowEditsAfterClosure: s.allowEditsAfterClosure}
}

// ToggleAttendanceClosure closes an open sheet or reopens a closed one.
func (s *State) ToggleAttendanceClosure(viewer models.Viewer) (AttendanceStatus, error) {
	var out AttendanceStatus
	err := s.mutate("attendance_closure", func() error {
		if err := requireCoordinator(viewer); err != nil {
			return err
		}
		if s.attendanceClosedAt != nil {
			s.attendanceClosedAt = nil
		} else {
			now := s.now().UTC()
			s.attendanceClosedAt = &now
		}
		out = AttendanceStatus{ClosedAt: copyTime(s.attendanceClosedAt), AllowEditsAfterClosure: s.allowEditsAfterClosure}
		return nil
	})
	return out, err
}

// SetAllowEditsAfterClosure lets helpers keep editing a closed sheet.
func (s *State) SetAllowEditsAfterClosure(viewer models.Viewer, allow bool) error {
	return s.mutate("attendance_override", func() error {
		if err := requireCoordinator(viewer); err != nil {
			return err
		}
		s.allowEditsAfterClosure = allow
		return nil
	})
}

func (s *State) hasStudentLocked(id string) bool {
	for _, st := range s.students {
		if st.ID == id {
			return true
		}
	}
	return false
}
