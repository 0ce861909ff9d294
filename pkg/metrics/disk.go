package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	diskPathMu sync.RWMutex
	diskPath   string
)

var diskUsed = prometheus.NewGaugeFunc(
	prometheus.GaugeOpts{
		Name: "mcikids_state_disk_used_percent",
		Help: "Used space on the filesystem holding the state directory.",
	},
	func() float64 {
		diskPathMu.RLock()
		p := diskPath
		diskPathMu.RUnlock()
		if p == "" {
			return 0
		}
		pct, err := DiskUsedPercent(p)
		if err != nil {
			return 0
		}
		return pct
	},
)

// SetDiskPath points the disk gauge at the state directory.
func SetDiskPath(path string) {
	diskPathMu.Lock()
	defer diskPathMu.Unlock()
	diskPath = path
}
