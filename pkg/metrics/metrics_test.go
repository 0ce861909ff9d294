package metrics

import (
	"net"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestPostCounterGauge(t *testing.T) {
	SetPostCounter(func() int { return 3 })
	defer SetPostCounter(nil)
	assert.Equal(t, 3.0, testutil.ToFloat64(posts))
}

func TestDiskUsedPercent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix only")
	}
	pct, err := DiskUsedPercent(t.TempDir())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pct, 0.0)
	assert.LessOrEqual(t, pct, 100.0)
}

func TestHandlerExposesCounters(t *testing.T) {
	BackupRuns.WithLabelValues("ok").Inc()

	var req fasthttp.Request
	req.SetRequestURI("/admin/metrics")
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}, nil)
	Handler()(&ctx)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.True(t, strings.Contains(body, `mcikids_backup_runs_total{result="ok"}`), body)
}
