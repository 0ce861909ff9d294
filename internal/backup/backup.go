package backup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/snapshot"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

// Prefix is the key namespace backups live under, next to the state slot.
const Prefix = "backup/"

// keyLayout is fixed width so keys sort chronologically.
const keyLayout = "2006-01-02T15:04:05.000000000Z"

// Entry describes one stored backup.
type Entry struct {
	Key   string    `json:"key" yaml:"key"`
	Taken time.Time `json:"taken" yaml:"taken"`
	Size  int       `json:"size" yaml:"size"`
}

// KeyFor returns the backup key for a copy taken at t.
func KeyFor(t time.Time) string {
	return Prefix + t.UTC().Format(keyLayout)
}

// ParseKey returns the time a backup key was taken at.
func ParseKey(key string) (time.Time, error) {
	if !strings.HasPrefix(key, Prefix) {
		return time.Time{}, fmt.Errorf("not a backup key: %q", key)
	}
	return time.Parse(keyLayout, strings.TrimPrefix(key, Prefix))
}

// Result summarises one backup run.
type Result struct {
	Key     string
	Bytes   int
	Pruned  []string
	Skipped bool
}

// Copy stores the current value of the state slot under a new backup key
// and prunes the oldest copies beyond keep. An absent slot is skipped.
func Copy(ctx context.Context, slot store.Slot, slotKey string, keep int, at time.Time) (Result, error) {
	var res Result
	data, err := slot.Get(ctx, slotKey)
	if store.IsNotFound(err) {
		res.Skipped = true
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read %s: %w", slotKey, err)
	}
	res.Key = KeyFor(at)
	res.Bytes = len(data)
	if err := slot.Put(ctx, res.Key, data); err != nil {
		return res, fmt.Errorf("write %s: %w", res.Key, err)
	}
	logger.Info("backup_written", "key", res.Key, "size", humanize.Bytes(uint64(len(data))))

	res.Pruned, err = Prune(ctx, slot, keep)
	return res, err
}

// Prune deletes all but the newest keep backups and returns the removed keys.
func Prune(ctx context.Context, slot store.Slot, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	keys, err := slot.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	sort.Strings(keys)
	if len(keys) <= keep {
		return nil, nil
	}
	var pruned []string
	for _, k := range keys[:len(keys)-keep] {
		if err := slot.Delete(ctx, k); err != nil {
			return pruned, fmt.Errorf("delete %s: %w", k, err)
		}
		pruned = append(pruned, k)
	}
	logger.Info("backups_pruned", "count", len(pruned), "keep", keep)
	return pruned, nil
}

// List returns stored backups, newest first.
func List(ctx context.Context, slot store.Slot) ([]Entry, error) {
	keys, err := slot.List(ctx, Prefix)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		taken, err := ParseKey(k)
		if err != nil {
			logger.Warn("backup_key_unparseable", "key", k, "error", err)
			continue
		}
		data, err := slot.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: k, Taken: taken, Size: len(data)})
	}
	return out, nil
}

// Restore overwrites the state slot with a backup. The backup must decode
// as a snapshot document.
func Restore(ctx context.Context, slot store.Slot, slotKey, backupKey string) error {
	data, err := slot.Get(ctx, backupKey)
	if err != nil {
		return fmt.Errorf("read %s: %w", backupKey, err)
	}
	if _, err := snapshot.Decode(data); err != nil {
		return fmt.Errorf("backup %s: %w", backupKey, err)
	}
	if err := snapshot.Save(ctx, slot, slotKey, data); err != nil {
		return err
	}
	logger.AuditEvent("backup_restored", "backup", backupKey, "slot", slotKey, "size", humanize.Bytes(uint64(len(data))))
	return nil
}
