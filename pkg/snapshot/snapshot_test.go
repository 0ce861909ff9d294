package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/portal"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

func openSlot(t *testing.T) store.Slot {
	t.Helper()
	s, err := store.Open(store.Options{Driver: store.DriverPebble, Path: filepath.Join(t.TempDir(), "store")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDecodeScenarioE(t *testing.T) {
	doc := `{
		"students": [{"id": "s1", "name": "Bia"}],
		"accumulated_balance": 42.5,
		"allow_edits_after_closure": true,
		"unknown_future_field": {"x": 1}
	}`
	snap, err := Decode([]byte(doc))
	require.NoError(t, err)

	assert.NotNil(t, snap.Posts)
	assert.Empty(t, snap.Posts)
	require.Len(t, snap.Students, 1)
	assert.Equal(t, "Bia", snap.Students[0].Name)
	assert.Equal(t, 42.5, snap.AccumulatedBalance)
	assert.True(t, snap.AllowEditsAfterClosure)
	assert.Nil(t, snap.AttendanceClosedAt)
}

func TestDecodeNullAndInvalidFieldsKeepDefaults(t *testing.T) {
	doc := `{"posts": null, "offerings": "not-a-list", "files": [{"id": "f1", "name": "a.pdf"}]}`
	snap, err := Decode([]byte(doc))
	require.NoError(t, err)
	assert.NotNil(t, snap.Posts)
	assert.NotNil(t, snap.Offerings)
	assert.Empty(t, snap.Offerings)
	assert.Len(t, snap.Files, 1)
}

func TestDecodeCorrupt(t *testing.T) {
	for _, doc := range []string{"", "{", "[1,2]", "null", "garbage"} {
		snap, err := Decode([]byte(doc))
		if !errors.Is(err, feed.ErrPersistenceCorrupt) {
			t.Errorf("Decode(%q) err = %v, want corrupt", doc, err)
		}
		if snap.Posts == nil || len(snap.Posts) != 0 {
			t.Errorf("Decode(%q) did not return defaults", doc)
		}
	}
}

func TestLoadAbsentAndCorruptSlot(t *testing.T) {
	ctx := context.Background()
	slot := openSlot(t)

	snap, err := Load(ctx, slot, DefaultKey)
	require.NoError(t, err)
	assert.Empty(t, snap.Posts)

	require.NoError(t, slot.Put(ctx, DefaultKey, []byte("{oops")))
	snap, err = Load(ctx, slot, DefaultKey)
	assert.ErrorIs(t, err, feed.ErrPersistenceCorrupt)
	assert.Empty(t, snap.Posts)
}

type failingSlot struct {
	store.Slot
	err error
}

func (f failingSlot) Get(context.Context, string) ([]byte, error) { return nil, f.err }

func TestLoadReadErrorIsNotCorrupt(t *testing.T) {
	ioErr := errors.New("disk I/O error")
	_, err := Load(context.Background(), failingSlot{err: ioErr}, DefaultKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, ioErr)
	assert.False(t, errors.Is(err, feed.ErrPersistenceCorrupt), "read failure labelled corrupt: %v", err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	slot := openSlot(t)
	p := NewPersister(slot, DefaultKey, ModeImmediate, 0)

	state := portal.New(portal.Options{})
	state.Subscribe(p)

	lia := models.Viewer{Name: "Lia", Role: models.RoleCoordinator}
	ana := models.Viewer{Name: "Ana", Role: models.RoleHelper}
	first, err := state.CreatePost(lia, portal.NewPost{Body: "Culto", Category: models.CategoryEvent, Public: true})
	require.NoError(t, err)
	second, err := state.CreatePost(ana, portal.NewPost{Body: "Escala", Category: models.CategoryDutyRoster, Mentions: "Lia, Beto"})
	require.NoError(t, err)
	_, _, err = state.React(ana, first.ID, models.ReactionParty)
	require.NoError(t, err)
	_, err = state.Comment(models.Anonymous(), first.ID, "amém")
	require.NoError(t, err)
	_, err = state.AddStudent(lia, "Bia")
	require.NoError(t, err)
	_, err = state.RecordOffering(ana, "in", "10", "")
	require.NoError(t, err)

	assert.Equal(t, state.Version(), p.Written())

	loaded, err := Load(ctx, slot, DefaultKey)
	require.NoError(t, err)
	want := state.Snapshot()

	require.Len(t, loaded.Posts, 2)
	assert.Equal(t, second.ID, loaded.Posts[0].ID)
	for i := range want.Posts {
		w, g := want.Posts[i], loaded.Posts[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Body, g.Body)
		assert.Equal(t, w.Category, g.Category)
		assert.Equal(t, w.Public, g.Public)
		assert.Equal(t, w.Mentions, g.Mentions)
		assert.Equal(t, w.Author, g.Author)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt))
		assert.Equal(t, w.ReactionCounts, g.ReactionCounts)
		assert.Equal(t, w.ReactionsByViewer, g.ReactionsByViewer)
		assert.Equal(t, w.Comments, g.Comments)
	}
	assert.Len(t, loaded.Students, 1)
	assert.Len(t, loaded.Offerings, 1)

	restored := portal.New(portal.Options{})
	restored.Restore(loaded)
	assert.Len(t, restored.Feed(lia, ""), 2)
}

func TestPersisterDropsStaleVersions(t *testing.T) {
	ctx := context.Background()
	slot := openSlot(t)
	p := NewPersister(slot, "k", ModeImmediate, 0)

	p.StateChanged(2, []byte(`{"v":2}`))
	p.StateChanged(1, []byte(`{"v":1}`))

	got, err := slot.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
	assert.Equal(t, uint64(2), p.Written())
}

func TestPersisterBatchedFlushesOnClose(t *testing.T) {
	ctx := context.Background()
	slot := openSlot(t)
	p := NewPersister(slot, "k", ModeBatched, time.Hour)
	p.Start(ctx)

	p.StateChanged(1, []byte(`{"v":1}`))
	p.StateChanged(2, []byte(`{"v":2}`))
	_, err := slot.Get(ctx, "k")
	assert.True(t, store.IsNotFound(err), "batched mode wrote early: %v", err)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Close(closeCtx))

	got, err := slot.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
}

func TestPersisterBatchedTicker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	slot := openSlot(t)
	p := NewPersister(slot, "k", ModeBatched, 10*time.Millisecond)
	p.Start(ctx)
	defer p.Close(context.Background())

	p.StateChanged(1, []byte(`{"v":1}`))
	deadline := time.Now().Add(5 * time.Second)
	for p.Written() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("batched flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeImmediate, "Immediate": ModeImmediate, "batched": ModeBatched} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("lazy"); err == nil {
		t.Errorf("expected error for unknown mode")
	}
}
