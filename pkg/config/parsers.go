package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// parses the server flags; only three values can be passed this way
func ParseConfigFlags(args []string) (Flags, error) {
	fset := flag.NewFlagSet("mcikids", flag.ContinueOnError)
	addrPtr := fset.String("addr", ":8080", "HTTP listen address")
	dbPtr := fset.String("db", "./.mcikids", "state directory")
	cfgPtr := fset.String("config", "./config.yaml", "path to config file")
	if err := fset.Parse(args); err != nil {
		return Flags{}, err
	}

	setFlags := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}, nil
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// loads MCIKIDS_* environment variables into a new Config; reports whether any was set
func ParseConfigEnvs() (*Config, bool) {
	envs := map[string]string{
		"ADDR":           os.Getenv("MCIKIDS_ADDR"),
		"SERVER_ADDRESS": os.Getenv("MCIKIDS_SERVER_ADDRESS"),
		"SERVER_PORT":    os.Getenv("MCIKIDS_SERVER_PORT"),
		"DB_PATH":        os.Getenv("MCIKIDS_DB_PATH"),
		"MAX_BODY_SIZE":  os.Getenv("MCIKIDS_MAX_BODY_SIZE"),

		"CORS_ORIGINS":         os.Getenv("MCIKIDS_CORS_ORIGINS"),
		"RATE_RPS":             os.Getenv("MCIKIDS_RATE_RPS"),
		"RATE_BURST":           os.Getenv("MCIKIDS_RATE_BURST"),
		"IP_WHITELIST":         os.Getenv("MCIKIDS_IP_WHITELIST"),
		"API_FRONTEND_KEYS":    os.Getenv("MCIKIDS_API_FRONTEND_KEYS"),
		"API_ADMIN_KEYS":       os.Getenv("MCIKIDS_API_ADMIN_KEYS"),
		"SIGNING_KEYS":         os.Getenv("MCIKIDS_SIGNING_KEYS"),
		"COORDINATOR_PASSWORD": os.Getenv("MCIKIDS_COORDINATOR_PASSWORD_HASH"),

		"LOG_LEVEL": os.Getenv("MCIKIDS_LOG_LEVEL"),
		"LOG_SINK":  os.Getenv("MCIKIDS_LOG_SINK"),

		"STORAGE_DRIVER":         os.Getenv("MCIKIDS_STORAGE_DRIVER"),
		"STORAGE_SLOT_KEY":       os.Getenv("MCIKIDS_STORAGE_SLOT_KEY"),
		"STORAGE_SYNC":           os.Getenv("MCIKIDS_STORAGE_SYNC"),
		"STORAGE_FLUSH_MODE":     os.Getenv("MCIKIDS_STORAGE_FLUSH_MODE"),
		"STORAGE_FLUSH_INTERVAL": os.Getenv("MCIKIDS_STORAGE_FLUSH_INTERVAL"),

		"BACKUP_ENABLED": os.Getenv("MCIKIDS_BACKUP_ENABLED"),
		"BACKUP_CRON":    os.Getenv("MCIKIDS_BACKUP_CRON"),
		"BACKUP_KEEP":    os.Getenv("MCIKIDS_BACKUP_KEEP"),

		"FEED_DOUBLE_TAP_WINDOW": os.Getenv("MCIKIDS_FEED_DOUBLE_TAP_WINDOW"),
		"FEED_VISITOR_NAME":      os.Getenv("MCIKIDS_FEED_VISITOR_NAME"),
		"FEED_SHARE_TITLE":       os.Getenv("MCIKIDS_FEED_SHARE_TITLE"),
	}

	envUsed := false
	for _, v := range envs {
		if v != "" {
			envUsed = true
			break
		}
	}
	envCfg := &Config{}

	if v := envs["ADDR"]; v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := envs["SERVER_ADDRESS"]; host != "" {
			envCfg.Server.Address = host
		}
		if port := envs["SERVER_PORT"]; port != "" {
			if pi, err := strconv.Atoi(strings.TrimSpace(port)); err == nil {
				envCfg.Server.Port = pi
			}
		}
	}
	envCfg.Server.DBPath = strings.TrimSpace(envs["DB_PATH"])
	if v := envs["MAX_BODY_SIZE"]; v != "" {
		envCfg.Server.MaxBodySize = parseSizeBytes(v)
	}

	envCfg.Security.CORS.AllowedOrigins = parseList(envs["CORS_ORIGINS"])
	if v := envs["RATE_RPS"]; v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envCfg.Security.RateLimit.RPS = f
		}
	}
	if v := envs["RATE_BURST"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envCfg.Security.RateLimit.Burst = n
		}
	}
	envCfg.Security.IPWhitelist = parseList(envs["IP_WHITELIST"])
	envCfg.Security.APIKeys.Frontend = parseList(envs["API_FRONTEND_KEYS"])
	envCfg.Security.APIKeys.Admin = parseList(envs["API_ADMIN_KEYS"])
	envCfg.Security.SigningKeys = parseList(envs["SIGNING_KEYS"])
	envCfg.Security.CoordinatorPasswordHash = strings.TrimSpace(envs["COORDINATOR_PASSWORD"])

	envCfg.Logging.Level = strings.TrimSpace(envs["LOG_LEVEL"])
	envCfg.Logging.Sink = strings.TrimSpace(envs["LOG_SINK"])

	envCfg.Storage.Driver = strings.ToLower(strings.TrimSpace(envs["STORAGE_DRIVER"]))
	envCfg.Storage.SlotKey = strings.TrimSpace(envs["STORAGE_SLOT_KEY"])
	envCfg.Storage.Sync = parseBool(envs["STORAGE_SYNC"], false)
	envCfg.Storage.FlushMode = strings.ToLower(strings.TrimSpace(envs["STORAGE_FLUSH_MODE"]))
	if v := envs["STORAGE_FLUSH_INTERVAL"]; v != "" {
		envCfg.Storage.FlushInterval, _ = parseDurationValue(v)
	}

	envCfg.Backup.Enabled = parseBool(envs["BACKUP_ENABLED"], false)
	envCfg.Backup.Cron = strings.TrimSpace(envs["BACKUP_CRON"])
	if v := envs["BACKUP_KEEP"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envCfg.Backup.Keep = n
		}
	}

	if v := envs["FEED_DOUBLE_TAP_WINDOW"]; v != "" {
		envCfg.Feed.DoubleTapWindow, _ = parseDurationValue(v)
	}
	envCfg.Feed.VisitorName = strings.TrimSpace(envs["FEED_VISITOR_NAME"])
	envCfg.Feed.ShareTitle = strings.TrimSpace(envs["FEED_SHARE_TITLE"])

	return envCfg, envUsed
}

// decides which single source to use and returns the effective config plus
// resolved addr and dbPath. --config wins; then explicit flags; then a config
// file if present; else env.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		return fromConfig(fileCfg, flags.DB, "config"), nil
	}

	if flags.Set["addr"] || flags.Set["db"] {
		out := &Config{}
		if fileExists {
			*out = *fileCfg
		}
		addr := flags.Addr
		if !flags.Set["addr"] {
			addr = out.Addr()
		}
		dbPath := flags.DB
		if !flags.Set["db"] {
			if p := strings.TrimSpace(envCfg.Server.DBPath); p != "" {
				dbPath = p
			} else if p := strings.TrimSpace(out.Server.DBPath); p != "" {
				dbPath = p
			}
		}
		out.Server.Address, out.Server.Port = splitAddr(addr)
		out.Server.DBPath = dbPath
		res.Config = out
		res.Addr = addr
		res.DBPath = dbPath
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		return fromConfig(fileCfg, flags.DB, "config"), nil
	}
	return fromConfig(envCfg, flags.DB, "env"), nil
}

func fromConfig(cfg *Config, fallbackDB, source string) EffectiveConfigResult {
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = fallbackDB
	}
	return EffectiveConfigResult{Config: cfg, Addr: cfg.Addr(), DBPath: cfg.Server.DBPath, Source: source}
}

// splits host:port, keeping the whole value as host when it has no port
func splitAddr(a string) (string, int) {
	h, p, err := net.SplitHostPort(a)
	if err != nil {
		return a, 0
	}
	pi, _ := strconv.Atoi(p)
	return h, pi
}

func parseList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func parseBool(v string, def bool) bool {
	if strings.TrimSpace(v) == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func parseSizeBytes(v string) SizeBytes {
	if u, err := humanize.ParseBytes(strings.TrimSpace(v)); err == nil {
		return SizeBytes(u)
	}
	if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
		return SizeBytes(i)
	}
	return 0
}
