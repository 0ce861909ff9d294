package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcikids_mutations_total",
			Help: "State mutations by operation and result.",
		},
		[]string{"op", "result"},
	)

	Reactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcikids_reactions_total",
			Help: "Applied reactions by kind and outcome.",
		},
		[]string{"reaction", "outcome"},
	)

	DoubleTaps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mcikids_double_taps_total",
			Help: "Taps that completed a double tap.",
		},
	)

	SnapshotWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcikids_snapshot_writes_total",
			Help: "Durable snapshot writes by result.",
		},
		[]string{"result"},
	)

	SnapshotBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcikids_snapshot_bytes",
			Help: "Size of the last written snapshot.",
		},
	)

	BackupRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcikids_backup_runs_total",
			Help: "Scheduled backup runs by result.",
		},
		[]string{"result"},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mcikids_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)
)

var (
	postCountMu sync.RWMutex
	postCountFn func() int
)

var posts = prometheus.NewGaugeFunc(
	prometheus.GaugeOpts{
		Name: "mcikids_posts",
		Help: "Posts currently held in memory.",
	},
	func() float64 {
		postCountMu.RLock()
		defer postCountMu.RUnlock()
		if postCountFn == nil {
			return 0
		}
		return float64(postCountFn())
	},
)

func init() {
	prometheus.MustRegister(Mutations, Reactions, DoubleTaps, SnapshotWrites, SnapshotBytes, BackupRuns, heapAlloc, posts, diskUsed)
}

// SetPostCounter installs the source for the posts gauge.
func SetPostCounter(fn func() int) {
	postCountMu.Lock()
	defer postCountMu.Unlock()
	postCountFn = fn
}

// Handler serves the default registry over fasthttp.
func Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
}
