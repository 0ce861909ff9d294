package state

import "path/filepath"

type Paths struct {
	DB    string
	Store string
	State string
	Audit string
	Logs  string
	Tmp   string
	Crash string // crash dumps written by CrashAndExit
}

func PathsFor(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		DB:    dbPath,
		Store: filepath.Join(dbPath, "store"),

		State: statePath,
		Audit: filepath.Join(statePath, "audit"),
		Logs:  filepath.Join(statePath, "logs"),
		Tmp:   filepath.Join(statePath, "tmp"),
		Crash: filepath.Join(statePath, "crash"),
	}
}

// dirs lists the directories EnsureStateDirs creates. The store path is
// left to the driver: pebble creates a directory, sqlite a file inside it.
func (p Paths) dirs() []string {
	return []string{p.Store, p.Audit, p.Logs, p.Tmp, p.Crash}
}
