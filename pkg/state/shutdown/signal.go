package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/state"
)

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("signal_received", "msg", "shutdown requested")
		}
	}()
	return ctx, stop
}

// Abort reports a fatal startup error and exits. Once the state layout is
// initialised a crash dump is written as well.
func Abort(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	if state.PathsVar.Crash != "" {
		state.CrashAndExit(msg, err)
		return
	}
	logger.Error(msg, "error", err)
	logger.Sync()
	os.Exit(1)
}
