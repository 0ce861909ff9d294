package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/MCIKIDS/mci.kids/pkg/config"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
)

const banner = `
 __  __  ___ ___   _  _____ ___  ___
|  \/  |/ __|_ _| | |/ /_ _|   \/ __|
| |\/| | (__ | |  | ' < | || |) \__ \
|_|  |_|\___|___| |_|\_\___|___/|___/
`

// Print writes the startup banner and a production checklist for the
// effective config, and mirrors the summary into the log.
func Print(w io.Writer, eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	fmt.Fprintf(w, "State:    %s\n", eff.DBPath)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	cfg := eff.Config
	if cfg == nil {
		return
	}
	fmt.Fprintf(w, "Storage:  %s (%s, key %s)\n", cfg.Storage.Driver, cfg.Storage.FlushMode, cfg.Storage.SlotKey)
	fmt.Fprintf(w, "Body max: %s\n", cfg.Server.MaxBodySize)

	fmt.Fprintln(w, "\n== Production? =================================================")
	for _, line := range checklist(cfg) {
		fmt.Fprintf(w, "- %s\n", line)
	}
	fmt.Fprintln(w, strings.Repeat("=", 63))

	logger.LogConfigSummary("config_summary", []string{
		"addr=" + addr,
		"state=" + eff.DBPath,
		"source=" + src,
		"driver=" + cfg.Storage.Driver,
		"flush=" + cfg.Storage.FlushMode,
	})
}

func checklist(cfg *config.Config) []string {
	var out []string
	if n := len(cfg.Security.APIKeys.Frontend); n > 0 {
		out = append(out, fmt.Sprintf("Frontend API keys: OK (%d)", n))
	} else {
		out = append(out, "Frontend API keys: MISSING (portal requests are not keyed)")
	}
	if n := len(cfg.Security.APIKeys.Admin); n > 0 {
		out = append(out, fmt.Sprintf("Admin API keys: OK (%d)", n))
	} else {
		out = append(out, "Admin API keys: MISSING (metrics are open)")
	}
	if len(cfg.Security.SigningKeys) > 0 {
		out = append(out, "Viewer signatures: required")
	} else {
		out = append(out, "Viewer signatures: OFF (headers are trusted)")
	}
	if cfg.Security.CoordinatorPasswordHash != "" {
		out = append(out, "Coordinator password: set")
	} else {
		out = append(out, "Coordinator password: MISSING (coordinator sign-in disabled)")
	}
	if cfg.Backup.Enabled {
		out = append(out, fmt.Sprintf("Backups: %s, keep %d", cfg.Backup.Cron, cfg.Backup.Keep))
	} else {
		out = append(out, "Backups: disabled")
	}
	return out
}
