package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/models"
)

func TestRosterSortedByName(t *testing.T) {
	s := newTestState(t)
	for _, n := range []string{"Zeca", "ana", "Bia"} {
		_, err := s.AddStudent(lia, n)
		require.NoError(t, err)
	}
	var names []string
	for _, st := range s.Students() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{"ana", "Bia", "Zeca"}, names)

	_, err := s.AddStudent(ana, "Caio")
	assert.ErrorIs(t, err, feed.ErrUnauthorized)
	_, err = s.AddStudent(lia, "  ")
	assert.ErrorIs(t, err, feed.ErrInvalidInput)
}

func TestAttendanceUpsertAndClosure(t *testing.T) {
	s := newTestState(t)
	st, _ := s.AddStudent(lia, "Bia")

	_, err := s.MarkAttendance(ana, st.ID, "2026-03-01", true)
	require.NoError(t, err)
	_, err = s.MarkAttendance(ana, st.ID, "2026-03-01", false)
	require.NoError(t, err)
	day := s.AttendanceFor("2026-03-01")
	require.Len(t, day, 1)
	assert.False(t, day[0].Present)
	assert.Equal(t, "Ana", day[0].RecordedBy)

	status, err := s.ToggleAttendanceClosure(lia)
	require.NoError(t, err)
	require.NotNil(t, status.ClosedAt)

	_, err = s.MarkAttendance(ana, st.ID, "2026-03-01", true)
	assert.ErrorIs(t, err, ErrAttendanceClosed)
	assert.ErrorIs(t, err, feed.ErrUnauthorized)
	_, err = s.MarkAttendance(lia, st.ID, "2026-03-01", true)
	assert.NoError(t, err)

	require.NoError(t, s.SetAllowEditsAfterClosure(lia, true))
	_, err = s.MarkAttendance(ana, st.ID, "2026-03-01", false)
	assert.NoError(t, err)

	status, err = s.ToggleAttendanceClosure(lia)
	require.NoError(t, err)
	assert.Nil(t, status.ClosedAt)

	_, err = s.ToggleAttendanceClosure(ana)
	assert.ErrorIs(t, err, feed.ErrUnauthorized)
}

func TestAttendanceValidation(t *testing.T) {
	s := newTestState(t)
	st, _ := s.AddStudent(lia, "Bia")

	tests := []struct {
		name    string
		viewer  models.Viewer
		student string
		day     string
		want    error
	}{
		{"anonymous", models.Anonymous(), st.ID, "2026-03-01", feed.ErrUnauthenticated},
		{"bad day", ana, st.ID, "01/03/2026", feed.ErrInvalidInput},
		{"unknown student", ana, "nope", "2026-03-01", feed.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.MarkAttendance(tt.viewer, tt.student, tt.day, true)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, s.AttendanceFor(""))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"10", 10, true},
		{" 12.50 ", 12.5, true},
		{"7,25", 7.25, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.raw)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, %v; want %v", tt.raw, got, err, tt.want)
			}
			continue
		}
		if err == nil {
			t.Errorf("ParseAmount(%q) succeeded with %v", tt.raw, got)
		}
	}
}

func TestLedgerAndCloseMonth(t *testing.T) {
	s := newTestState(t)
	_, err := s.RecordOffering(ana, "in", "100", "culto")
	require.NoError(t, err)
	_, err = s.RecordOffering(ana, "entrada", "50.5", "")
	require.NoError(t, err)
	_, err = s.RecordOffering(lia, "out", "20", "lanche")
	require.NoError(t, err)

	_, err = s.RecordOffering(ana, "in", "-1", "")
	assert.ErrorIs(t, err, feed.ErrInvalidInput)
	_, err = s.RecordOffering(ana, "gift", "1", "")
	assert.ErrorIs(t, err, feed.ErrInvalidInput)
	_, err = s.RecordOffering(models.Anonymous(), "in", "1", "")
	assert.ErrorIs(t, err, feed.ErrUnauthenticated)

	tot := s.Ledger()
	assert.Equal(t, 150.5, tot.In)
	assert.Equal(t, 20.0, tot.Out)
	assert.Equal(t, 130.5, tot.Balance)
	assert.Len(t, s.Offerings(), 3)
	assert.Equal(t, "lanche", s.Offerings()[0].Note)

	_, err = s.CloseMonth(ana)
	assert.ErrorIs(t, err, feed.ErrUnauthorized)

	tot, err = s.CloseMonth(lia)
	require.NoError(t, err)
	assert.Equal(t, 130.5, tot.Accumulated)
	assert.Equal(t, 0.0, tot.Balance)

	_, err = s.RecordOffering(ana, "in", "10", "")
	require.NoError(t, err)
	tot = s.Ledger()
	assert.Equal(t, 10.0, tot.Balance)
	assert.Equal(t, 130.5, tot.Accumulated)
	require.NotNil(t, s.Snapshot().LastMonthClosure)
}

func TestRegistrations(t *testing.T) {
	s := newTestState(t)
	_, err := s.Register(models.Registration{Name: "Bia", Phone: "  "})
	assert.ErrorIs(t, err, feed.ErrInvalidInput)

	first, err := s.Register(models.Registration{Name: " Bia ", Phone: "1199"})
	require.NoError(t, err)
	assert.Equal(t, "Bia", first.Name)
	second, err := s.Register(models.Registration{Name: "Caio", Phone: "1188", Guardian: "Rui"})
	require.NoError(t, err)

	_, err = s.Registrations(models.Anonymous())
	assert.ErrorIs(t, err, feed.ErrUnauthenticated)
	list, err := s.Registrations(ana)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestFiles(t *testing.T) {
	s := newTestState(t)
	_, err := s.AddFile(ana, "licao.pdf", "")
	assert.ErrorIs(t, err, feed.ErrUnauthorized)
	f, err := s.AddFile(lia, "licao.pdf", "https://example.org/licao.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Lia", f.AddedBy)
	assert.Len(t, s.Files(), 1)
}
