package app

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/internal/backup"
	"github.com/MCIKIDS/mci.kids/pkg/api"
	"github.com/MCIKIDS/mci.kids/pkg/api/auth"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/metrics"
	"github.com/MCIKIDS/mci.kids/pkg/router"
)

func (a *App) readyzHandlerFast(ctx *fasthttp.RequestCtx) {
	if !a.slot.Ready() {
		_ = router.WriteJSONStatus(ctx, fasthttp.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_ = router.WriteJSON(ctx, map[string]string{"status": "ok", "version": ver})
}

func (a *App) healthzHandlerFast(ctx *fasthttp.RequestCtx) {
	_ = router.WriteJSON(ctx, map[string]string{"status": "ok"})
}

func (a *App) listBackupsFast(ctx *fasthttp.RequestCtx) {
	entries, err := backup.List(ctx, a.slot)
	if err != nil {
		logger.Error("backup_list_failed", "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	_ = router.WriteJSON(ctx, entries)
}

func (a *App) runBackupFast(ctx *fasthttp.RequestCtx) {
	if a.backups == nil {
		router.WriteJSONError(ctx, fasthttp.StatusConflict, "backups are disabled")
		return
	}
	res, err := a.backups.RunOnce(ctx)
	if err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}
	_ = router.WriteJSONStatus(ctx, fasthttp.StatusCreated, map[string]interface{}{
		"key":     res.Key,
		"bytes":   res.Bytes,
		"pruned":  res.Pruned,
		"skipped": res.Skipped,
	})
}

// handler builds the routed, gateway-wrapped request handler.
func (a *App) handler() fasthttp.RequestHandler {
	cfg := a.eff.Config
	a.gateway = auth.NewGateway(auth.SecConfig{
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    append([]string{}, cfg.Security.IPWhitelist...),
		FrontendKeys:   auth.KeySet(cfg.Security.APIKeys.Frontend),
		AdminKeys:      auth.KeySet(cfg.Security.APIKeys.Admin),
		SigningKeys:    cfg.Security.SigningKeys,
	})

	r := router.New()
	r.GET("/healthz", a.healthzHandlerFast)
	r.GET("/readyz", a.readyzHandlerFast)
	r.GET("/admin/metrics", metrics.Handler())
	r.GET("/admin/backups", a.listBackupsFast)
	r.POST("/admin/backups", a.runBackupFast)

	api.New(a.state, api.Options{
		SigningKeys:             cfg.Security.SigningKeys,
		CoordinatorPasswordHash: cfg.Security.CoordinatorPasswordHash,
		ShareTitle:              cfg.Feed.ShareTitle,
		MaxPayloadSize:          int(cfg.Server.MaxBodySize.Int64()),
	}).Register(r)

	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})
	return a.gateway.Wrap(r.Handler)
}

// startHTTP starts the fasthttp server and returns a channel that delivers its error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	const (
		readBufferSize       = 64 * 1024
		readTimeout          = 10 * time.Second
		writeTimeout         = 10 * time.Second
		idleTimeout          = 30 * time.Second
		maxKeepaliveDuration = 2 * time.Minute
	)
	a.srvFast = &fasthttp.Server{
		Handler:              a.handler(),
		Name:                 "mcikids",
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(a.eff.Config.Server.MaxBodySize.Int64()),
		ReduceMemoryUsage:    true,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}

	addr := a.eff.Addr
	if addr == "" {
		addr = a.eff.Config.Addr()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", addr)
		errCh <- a.srvFast.ListenAndServe(addr)
	}()
	return errCh
}
