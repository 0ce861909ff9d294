package backup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/snapshot"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

func openSlot(t *testing.T) store.Slot {
	t.Helper()
	s, err := store.Open(store.Options{Driver: store.DriverPebble, Path: filepath.Join(t.TempDir(), "store")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeyRoundTripSorts(t *testing.T) {
	a := time.Date(2026, 3, 1, 3, 0, 0, 5, time.UTC)
	b := time.Date(2026, 3, 1, 3, 0, 0, 40, time.UTC)
	assert.Less(t, KeyFor(a), KeyFor(b))

	got, err := ParseKey(KeyFor(a))
	require.NoError(t, err)
	assert.True(t, got.Equal(a))

	_, err = ParseKey("other/2026")
	assert.Error(t, err)
}

func TestCopyAndPrune(t *testing.T) {
	ctx := context.Background()
	slot := openSlot(t)

	res, err := Copy(ctx, slot, snapshot.DefaultKey, 2, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	require.NoError(t, slot.Put(ctx, snapshot.DefaultKey, []byte(`{"posts":[]}`)))
	base := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	var keys []string
	for i := 0; i < 4; i++ {
		res, err := Copy(ctx, slot, snapshot.DefaultKey, 2, base.Add(time.Duration(i)*24*time.Hour))
		require.NoError(t, err)
		keys = append(keys, res.Key)
	}

	list, err := List(ctx, slot)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, keys[3], list[0].Key)
	assert.Equal(t, keys[2], list[1].Key)
	assert.Equal(t, len(`{"posts":[]}`), list[0].Size)
	assert.True(t, list[0].Taken.After(list[1].Taken))
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	slot := openSlot(t)

	good := []byte(`{"accumulated_balance": 9}`)
	require.NoError(t, slot.Put(ctx, snapshot.DefaultKey, good))
	res, err := Copy(ctx, slot, snapshot.DefaultKey, 0, time.Now())
	require.NoError(t, err)

	require.NoError(t, slot.Put(ctx, snapshot.DefaultKey, []byte(`{"accumulated_balance": 1}`)))
	require.NoError(t, Restore(ctx, slot, snapshot.DefaultKey, res.Key))
	snap, err := snapshot.Load(ctx, slot, snapshot.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, 9.0, snap.AccumulatedBalance)

	bad := KeyFor(time.Now().Add(time.Hour))
	require.NoError(t, slot.Put(ctx, bad, []byte("{broken")))
	err = Restore(ctx, slot, snapshot.DefaultKey, bad)
	assert.ErrorIs(t, err, feed.ErrPersistenceCorrupt)

	err = Restore(ctx, slot, snapshot.DefaultKey, KeyFor(time.Unix(0, 0)))
	assert.True(t, store.IsNotFound(err), "err = %v", err)
}

func TestLeaseExclusive(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLease(dir)

	ok, err := l.Acquire("a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, l.Release("b"))
	require.NoError(t, l.Release("a"))

	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseExpiredIsReplaced(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLease(dir)
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, err := l.Acquire("a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release("b"))
}

func TestSchedulerRunOnceFlushesFirst(t *testing.T) {
	ctx := context.Background()
	slot := openSlot(t)
	flushed := false
	s, err := NewScheduler(Options{
		Slot:      slot,
		SlotKey:   snapshot.DefaultKey,
		Cron:      "0 3 * * *",
		Keep:      3,
		AuditPath: t.TempDir(),
		Flush: func(ctx context.Context) error {
			flushed = true
			return slot.Put(ctx, snapshot.DefaultKey, []byte(`{"posts":[]}`))
		},
	})
	require.NoError(t, err)

	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.Key)

	list, err := List(ctx, slot)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	_, err := NewScheduler(Options{Cron: "every day"})
	assert.Error(t, err)
}
