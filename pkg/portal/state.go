package portal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/metrics"
	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// Observer is notified after every successful mutation with the new
// version and the encoded snapshot taken under the state lock.
type Observer interface {
	StateChanged(version uint64, payload []byte)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(version uint64, payload []byte)

func (f ObserverFunc) StateChanged(version uint64, payload []byte) { f(version, payload) }

// Options configures a State.
type Options struct {
	Clock           func() time.Time
	NewID           func() string
	VisitorName     string
	DoubleTapWindow time.Duration
}

// State is the application state: the post store plus the sibling
// collections. Every mutation runs under one lock and is all-or-nothing.
type State struct {
	mu sync.Mutex

	posts         *feed.PostStore
	students      []models.Student
	attendance    []models.Attendance
	offerings     []models.Offering
	files         []models.File
	registrations []models.Registration

	accumulatedBalance     float64
	lastMonthClosure       *time.Time
	attendanceClosedAt     *time.Time
	allowEditsAfterClosure bool

	version   uint64
	observers []Observer
	gestures  *feed.GestureBoard

	now   func() time.Time
	newID func() string
}

func New(opts Options) *State {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	s := &State{
		posts: feed.NewPostStore(
			feed.WithClock(opts.Clock),
			feed.WithIDGenerator(opts.NewID),
			feed.WithVisitorName(opts.VisitorName),
		),
		gestures: feed.NewGestureBoard(opts.DoubleTapWindow),
		now:      opts.Clock,
		newID:    opts.NewID,
	}
	s.restoreLocked(models.DefaultSnapshot())
	return s
}

// Subscribe registers an observer for subsequent mutations.
func (s *State) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Version returns the number of successful mutations since construction.
func (s *State) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Restore replaces the whole state without notifying observers.
func (s *State) Restore(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(snap)
}

func (s *State) restoreLocked(snap models.Snapshot) {
	s.posts.Replace(snap.Posts)
	s.students = append([]models.Student{}, snap.Students...)
	s.attendance = append([]models.Attendance{}, snap.Attendance...)
	s.offerings = append([]models.Offering{}, snap.Offerings...)
	s.files = append([]models.File{}, snap.Files...)
	s.registrations = append([]models.Registration{}, snap.Registrations...)
	s.accumulatedBalance = snap.AccumulatedBalance
	s.lastMonthClosure = copyTime(snap.LastMonthClosure)
	s.attendanceClosedAt = copyTime(snap.AttendanceClosedAt)
	s.allowEditsAfterClosure = snap.AllowEditsAfterClosure
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Posts:                  s.posts.List(),
		Students:               append([]models.Student{}, s.students...),
		Attendance:             append([]models.Attendance{}, s.attendance...),
		Offerings:              append([]models.Offering{}, s.offerings...),
		Files:                  append([]models.File{}, s.files...),
		Registrations:          append([]models.Registration{}, s.registrations...),
		AccumulatedBalance:     s.accumulatedBalance,
		LastMonthClosure:       copyTime(s.lastMonthClosure),
		AttendanceClosedAt:     copyTime(s.attendanceClosedAt),
		AllowEditsAfterClosure: s.allowEditsAfterClosure,
	}
}

// PostCount is used by the posts gauge.
func (s *State) PostCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts.Len()
}

// mutate applies fn under the lock. On success the version is bumped and
// the encoded snapshot is handed to observers after the lock is released.
func (s *State) mutate(op string, fn func() error) error {
	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		metrics.Mutations.WithLabelValues(op, feed.Kind(err)).Inc()
		logger.Debug("mutation_rejected", "op", op, "kind", feed.Kind(err), "error", err)
		return err
	}
	s.version++
	version := s.version
	payload, encErr := json.Marshal(s.snapshotLocked())
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	metrics.Mutations.WithLabelValues(op, "ok").Inc()
	if encErr != nil {
		logger.Error("snapshot_encode_failed", "op", op, "version", version, "error", encErr)
		return nil
	}
	for _, o := range observers {
		o.StateChanged(version, payload)
	}
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
