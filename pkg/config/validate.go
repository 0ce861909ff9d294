package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"golang.org/x/crypto/bcrypt"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/snapshot"
	"github.com/MCIKIDS/mci.kids/pkg/store"
)

const (
	defaultMaxBodySize   = 1 << 20 // 1 MiB
	defaultRateRPS       = 50
	defaultRateBurst     = 100
	defaultLogLevel      = "info"
	defaultLogSink       = "stdout"
	defaultBackupCron    = "0 3 * * *"
	defaultBackupKeep    = 7
	minDoubleTapWindow   = 50 * time.Millisecond
	maxDoubleTapWindow   = 2 * time.Second
	defaultCORSAnyOrigin = "*"
)

// set defaults, fail fast on critical errors
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("effective config is nil")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("state path is empty: set --db flag, MCIKIDS_DB_PATH env, or server.db_path in config")
	}

	if cfg.Server.MaxBodySize <= 0 {
		cfg.Server.MaxBodySize = defaultMaxBodySize
	}

	sec := &cfg.Security
	if sec.RateLimit.RPS <= 0 {
		sec.RateLimit.RPS = defaultRateRPS
	}
	if sec.RateLimit.Burst <= 0 {
		sec.RateLimit.Burst = defaultRateBurst
	}
	if len(sec.CORS.AllowedOrigins) == 0 {
		sec.CORS.AllowedOrigins = []string{defaultCORSAnyOrigin}
	}
	if h := sec.CoordinatorPasswordHash; h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return fmt.Errorf("invalid security.coordinator_password_hash: %w", err)
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	if cfg.Logging.Sink == "" {
		cfg.Logging.Sink = defaultLogSink
	}

	st := &cfg.Storage
	switch strings.ToLower(st.Driver) {
	case "", store.DriverPebble:
		st.Driver = store.DriverPebble
	case store.DriverSQLite:
		st.Driver = store.DriverSQLite
	default:
		return fmt.Errorf("invalid storage.driver %q: want %s or %s", st.Driver, store.DriverPebble, store.DriverSQLite)
	}
	if st.SlotKey == "" {
		st.SlotKey = snapshot.DefaultKey
	}
	mode, err := snapshot.ParseMode(st.FlushMode)
	if err != nil {
		return fmt.Errorf("invalid storage.flush_mode: %w", err)
	}
	st.FlushMode = string(mode)
	if st.FlushInterval <= 0 {
		st.FlushInterval = Duration(snapshot.DefaultFlushInterval)
	}

	bk := &cfg.Backup
	if bk.Cron == "" {
		bk.Cron = defaultBackupCron
	}
	if bk.Keep <= 0 {
		bk.Keep = defaultBackupKeep
	}
	if !gronx.IsValid(bk.Cron) {
		return fmt.Errorf("invalid backup.cron expression: %s", bk.Cron)
	}

	fd := &cfg.Feed
	if fd.DoubleTapWindow == 0 {
		fd.DoubleTapWindow = Duration(feed.DefaultDoubleTapWindow)
	}
	if w := fd.DoubleTapWindow.Duration(); w < minDoubleTapWindow || w > maxDoubleTapWindow {
		return fmt.Errorf("feed.double_tap_window %s out of range [%s, %s]", w, minDoubleTapWindow, maxDoubleTapWindow)
	}
	if fd.VisitorName == "" {
		fd.VisitorName = feed.DefaultVisitorName
	}
	if fd.ShareTitle == "" {
		fd.ShareTitle = feed.DefaultShareTitle
	}
	return nil
}
