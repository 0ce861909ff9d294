package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/metrics"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

// Mode selects when observed snapshots reach the slot.
type Mode string

const (
	// ModeImmediate writes every snapshot before StateChanged returns.
	ModeImmediate Mode = "immediate"
	// ModeBatched keeps the newest snapshot and writes it on a timer and on Close.
	ModeBatched Mode = "batched"
)

const DefaultFlushInterval = 2 * time.Second

// ParseMode accepts a config value; empty means immediate.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeImmediate:
		return ModeImmediate, nil
	case ModeBatched:
		return ModeBatched, nil
	}
	return "", fmt.Errorf("unknown flush mode %q", s)
}

// Persister observes state changes and writes them to the slot in version
// order. A snapshot older than one already written is dropped.
type Persister struct {
	slot     store.Slot
	key      string
	mode     Mode
	interval time.Duration

	mu             sync.Mutex
	written        uint64
	pending        []byte
	pendingVersion uint64

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewPersister(slot store.Slot, key string, mode Mode, interval time.Duration) *Persister {
	if key == "" {
		key = DefaultKey
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Persister{
		slot:     slot,
		key:      key,
		mode:     mode,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the flush loop in batched mode; it is a no-op otherwise.
func (p *Persister) Start(ctx context.Context) {
	if p.mode != ModeBatched {
		return
	}
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	go p.loop(ctx)
}

func (p *Persister) loop(ctx context.Context) {
	defer close(p.done)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := p.Flush(ctx); err != nil {
				logger.Error("snapshot_flush_failed", "error", err)
			}
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// StateChanged implements portal.Observer.
func (p *Persister) StateChanged(version uint64, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if version <= p.written || version <= p.pendingVersion {
		logger.Debug("snapshot_stale_dropped", "version", version, "written", p.written)
		return
	}
	p.pending, p.pendingVersion = payload, version
	if p.mode == ModeImmediate {
		if err := p.writeLocked(context.Background()); err != nil {
			logger.Error("snapshot_write_failed", "version", version, "error", err)
		}
	}
}

// Flush writes the pending snapshot, if any.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeLocked(ctx)
}

func (p *Persister) writeLocked(ctx context.Context) error {
	if p.pending == nil {
		return nil
	}
	if err := Save(ctx, p.slot, p.key, p.pending); err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotWrites.WithLabelValues("ok").Inc()
	metrics.SnapshotBytes.Set(float64(len(p.pending)))
	logger.Debug("snapshot_written", "version", p.pendingVersion, "size", humanize.Bytes(uint64(len(p.pending))))
	p.written = p.pendingVersion
	p.pending = nil
	return nil
}

// Written returns the last version that reached the slot.
func (p *Persister) Written() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Close stops the flush loop and writes whatever is pending.
func (p *Persister) Close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		select {
		case <-p.done:
		case <-ctx.Done():
		}
	}
	return p.Flush(ctx)
}
