package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

// DefaultKey is the slot the whole state lives under.
const DefaultKey = "mci_kids_state_v1"

// Encode serializes the whole state.
func Encode(snap models.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

// Decode merges every known top-level field present in data over the
// defaults. Missing or null fields keep their default; a field that fails
// to decode is logged and keeps its default. Only a document that is not a
// JSON object is reported as corrupt.
func Decode(data []byte) (models.Snapshot, error) {
	snap := models.DefaultSnapshot()
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return snap, fmt.Errorf("%w: %v", feed.ErrPersistenceCorrupt, err)
	}
	if doc == nil {
		return snap, fmt.Errorf("%w: document is null", feed.ErrPersistenceCorrupt)
	}

	merge(doc, "posts", &snap.Posts)
	merge(doc, "attendance", &snap.Attendance)
	merge(doc, "offerings", &snap.Offerings)
	merge(doc, "files", &snap.Files)
	merge(doc, "registrations", &snap.Registrations)
	merge(doc, "accumulated_balance", &snap.AccumulatedBalance)
	merge(doc, "last_month_closure", &snap.LastMonthClosure)
	merge(doc, "attendance_closed_at", &snap.AttendanceClosedAt)
	merge(doc, "allow_edits_after_closure", &snap.AllowEditsAfterClosure)
	merge(doc, "students", &snap.Students)

	for _, p := range snap.Posts {
		if !feed.CountsConsistent(p) {
			logger.Warn("snapshot_reaction_counts_inconsistent", "post", p.ID)
		}
	}
	return snap, nil
}

func merge[T any](doc map[string]json.RawMessage, field string, dst *T) {
	raw, ok := doc[field]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Warn("snapshot_field_invalid", "field", field, "error", err)
		return
	}
	*dst = v
}

// Load reads the slot. An absent slot yields defaults with no error; an
// undecodable one yields defaults and an ErrPersistenceCorrupt error that
// callers log and otherwise ignore. A failed read is returned as is and
// must not be treated as corrupt: the stored state may still be intact.
func Load(ctx context.Context, slot store.Slot, key string) (models.Snapshot, error) {
	data, err := slot.Get(ctx, key)
	if store.IsNotFound(err) {
		logger.Info("snapshot_absent", "key", key)
		return models.DefaultSnapshot(), nil
	}
	if err != nil {
		return models.DefaultSnapshot(), fmt.Errorf("read %s: %w", key, err)
	}
	snap, err := Decode(data)
	if err != nil {
		logger.Error("snapshot_corrupt", "key", key, "error", err)
		return snap, err
	}
	logger.Info("snapshot_loaded", "key", key, "posts", len(snap.Posts), "bytes", len(data))
	return snap, nil
}

// Save overwrites the slot with an encoded snapshot.
func Save(ctx context.Context, slot store.Slot, key string, payload []byte) error {
	return slot.Put(ctx, key, payload)
}
