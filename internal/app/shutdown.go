package app

import (
	"context"
	"errors"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
)

// Shutdown stops the server and backups, then flushes and closes the slot.
func (a *App) Shutdown(ctx context.Context) error {
	a.status = "shutting_down"
	var errs []error

	if a.srvFast != nil {
		if err := a.srvFast.Shutdown(); err != nil {
			logger.Error("http_shutdown_failed", "error", err)
			errs = append(errs, err)
		}
	}
	if a.backupCancel != nil {
		a.backupCancel()
	}
	if a.gateway != nil {
		a.gateway.Close()
	}
	if err := a.persister.Close(ctx); err != nil {
		logger.Error("snapshot_final_flush_failed", "error", err)
		errs = append(errs, err)
	}
	if err := a.slot.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err == nil {
		a.status = "stopped"
		logger.Info("shutdown_complete", "written_version", a.persister.Written())
	}
	return err
}
