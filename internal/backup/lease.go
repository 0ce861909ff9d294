package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
)

const leaseFileName = "backup.lock"

// FileLease serialises backup runs and restores across processes that
// share a state directory.
type FileLease struct {
	path string
	now  func() time.Time
}

type leaseFile struct {
	Owner   string `json:"owner"`
	Expires string `json:"expires"`
}

func NewFileLease(auditPath string) *FileLease {
	return &FileLease{path: filepath.Join(auditPath, leaseFileName), now: time.Now}
}

// Acquire takes the lease for ttl. It returns false when another owner holds
// an unexpired lease.
func (l *FileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	now := l.now()
	b, _ := json.Marshal(leaseFile{Owner: owner, Expires: now.Add(ttl).Format(time.RFC3339Nano)})
	tmp := l.path + "." + owner + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		logger.Error("lease_tmp_write_failed", "path", tmp, "error", err)
		return false, err
	}
	defer os.Remove(tmp)

	// link fails if the lock exists, which makes creation atomic
	if err := os.Link(tmp, l.path); err == nil {
		logger.Debug("lease_acquired", "path", l.path, "owner", owner)
		return true, nil
	}
	existing, err := l.read()
	if err != nil {
		return false, err
	}
	expT, _ := time.Parse(time.RFC3339Nano, existing.Expires)
	if expT.After(now) {
		logger.Info("lease_currently_held", "path", l.path, "owner", existing.Owner)
		return false, nil
	}
	if err := os.Rename(tmp, l.path); err != nil {
		logger.Error("lease_replace_failed", "error", err)
		return false, err
	}
	logger.Info("lease_acquired_replaced", "path", l.path, "owner", owner, "previous", existing.Owner)
	return true, nil
}

// Release drops the lease if owner still holds it.
func (l *FileLease) Release(owner string) error {
	existing, err := l.read()
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		logger.Error("lease_release_not_owner", "owner", owner, "holder", existing.Owner)
		return fmt.Errorf("lease held by %s", existing.Owner)
	}
	if err := os.Remove(l.path); err != nil {
		logger.Error("lease_release_remove_failed", "error", err)
		return err
	}
	logger.Debug("lease_released", "path", l.path, "owner", owner)
	return nil
}

func (l *FileLease) read() (leaseFile, error) {
	var lf leaseFile
	data, err := os.ReadFile(l.path)
	if err != nil {
		return lf, err
	}
	if err := json.Unmarshal(data, &lf); err != nil {
		return lf, fmt.Errorf("corrupt lease %s: %w", l.path, err)
	}
	return lf, nil
}
