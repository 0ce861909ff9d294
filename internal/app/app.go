package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/internal/backup"
	"github.com/MCIKIDS/mci.kids/pkg/api/auth"
	"github.com/MCIKIDS/mci.kids/pkg/config"
	"github.com/MCIKIDS/mci.kids/pkg/config/banner"
	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/metrics"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/portal"
	"github.com/MCIKIDS/mci.kids/pkg/snapshot"
	"github.com/MCIKIDS/mci.kids/pkg/state"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

// App groups the service components.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	slot      store.Slot
	state     *portal.State
	persister *snapshot.Persister
	gateway   *auth.Gateway
	backups   *backup.Scheduler

	backupCancel context.CancelFunc
	srvFast      *fasthttp.Server
	status       string
}

// New opens the slot, restores the last snapshot and wires persistence.
// It does not start the HTTP server; Run does that.
func New(eff config.EffectiveConfigResult, version string) (*App, error) {
	if state.PathsVar.Store == "" {
		return nil, fmt.Errorf("state paths not initialized")
	}
	cfg := eff.Config

	slot, err := store.Open(store.Options{
		Driver: cfg.Storage.Driver,
		Path:   store.DataPath(cfg.Storage.Driver, state.PathsVar.Store),
		Sync:   cfg.Storage.Sync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store at %s: %w", cfg.Storage.Driver, state.PathsVar.Store, err)
	}

	snap, err := loadSnapshot(context.Background(), slot, cfg.Storage.SlotKey)
	if err != nil {
		_ = slot.Close()
		return nil, err
	}

	st := portal.New(portal.Options{
		VisitorName:     cfg.Feed.VisitorName,
		DoubleTapWindow: cfg.Feed.DoubleTapWindow.Duration(),
	})
	st.Restore(snap)

	mode, err := snapshot.ParseMode(cfg.Storage.FlushMode)
	if err != nil {
		_ = slot.Close()
		return nil, err
	}
	p := snapshot.NewPersister(slot, cfg.Storage.SlotKey, mode, cfg.Storage.FlushInterval.Duration())
	st.Subscribe(p)
	metrics.SetPostCounter(st.PostCount)
	metrics.SetDiskPath(state.PathsVar.Store)

	if state.PathsVar.Logs != "" {
		logger.AttachAudit(state.PathsVar.Logs)
	}

	a := &App{eff: eff, version: version, slot: slot, state: st, persister: p, status: "initialized"}

	if cfg.Backup.Enabled {
		a.backups, err = backup.NewScheduler(backup.Options{
			Slot:      slot,
			SlotKey:   cfg.Storage.SlotKey,
			Cron:      cfg.Backup.Cron,
			Keep:      cfg.Backup.Keep,
			AuditPath: state.PathsVar.Audit,
			Flush:     p.Flush,
		})
		if err != nil {
			_ = slot.Close()
			return nil, err
		}
	}

	logger.LogConfigSummary("state_restored", []string{
		fmt.Sprintf("driver: %s", cfg.Storage.Driver),
		fmt.Sprintf("flush_mode: %s", mode),
		fmt.Sprintf("posts: %s", humanize.Comma(int64(len(snap.Posts)))),
		fmt.Sprintf("students: %s", humanize.Comma(int64(len(snap.Students)))),
		fmt.Sprintf("offerings: %s", humanize.Comma(int64(len(snap.Offerings)))),
	})
	return a, nil
}

// loadSnapshot reads the stored state. A corrupt document starts from
// defaults and the next mutation overwrites it; a failed read is fatal so
// intact state is never replaced.
func loadSnapshot(ctx context.Context, slot store.Slot, key string) (models.Snapshot, error) {
	snap, err := snapshot.Load(ctx, slot, key)
	if err == nil {
		return snap, nil
	}
	if errors.Is(err, feed.ErrPersistenceCorrupt) {
		logger.Error("snapshot_restore_failed", "key", key, "error", err)
		return snap, nil
	}
	return models.Snapshot{}, fmt.Errorf("failed to read state from %s: %w", key, err)
}

// State exposes the in-memory portal state.
func (a *App) State() *portal.State { return a.state }

// Run starts persistence, backups and the HTTP server, and blocks until ctx
// is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	banner.Print(os.Stdout, a.eff, a.version)

	a.persister.Start(ctx)
	if a.backups != nil {
		a.backupCancel = a.backups.Start(ctx)
	}

	errCh := a.startHTTP(ctx)
	a.status = "running"

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Status reports the lifecycle phase.
func (a *App) Status() string { return a.status }
