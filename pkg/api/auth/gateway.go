package auth

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/router"
)

// KeyRole is the role granted by an API key.
type KeyRole int

const (
	KeyUnauth KeyRole = iota
	KeyFrontend
	KeyAdmin
)

// SecConfig is the gateway configuration.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
	SigningKeys    []string
}

// KeySet builds a lookup set from a key list.
func KeySet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}

// Gateway is the request middleware: logging, CORS, IP whitelist, API keys,
// per-key rate limiting and viewer resolution.
type Gateway struct {
	cfg      SecConfig
	limiters *limiterPool
}

func NewGateway(cfg SecConfig) *Gateway {
	return &Gateway{cfg: cfg, limiters: newLimiterPool(cfg.RPS, cfg.Burst)}
}

// Close stops the limiter cleanup loop.
func (g *Gateway) Close() {
	g.limiters.Shutdown()
}

func (g *Gateway) Wrap(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	cfg := g.cfg
	return func(ctx *fasthttp.RequestCtx) {
		logger.LogRequestFast(ctx)

		origin := string(ctx.Request.Header.Peek("Origin"))
		if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Vary", "Origin")
			ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			ctx.Response.Header.Set("Access-Control-Max-Age", "600")
			ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type,X-API-Key,X-User-Name,X-Role-Name,X-User-Signature")
		}
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		if len(cfg.IPWhitelist) > 0 {
			ip := clientIP(ctx)
			if !ipWhitelisted(ip, cfg.IPWhitelist) {
				router.WriteJSONError(ctx, fasthttp.StatusForbidden, "forbidden")
				logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", string(ctx.Path()))
				return
			}
		}

		if publicPath(ctx) {
			next(ctx)
			return
		}

		path := string(ctx.Path())
		admin := strings.HasPrefix(path, "/admin")
		role, key := g.validateAPIKey(ctx)
		switch {
		case admin && len(cfg.AdminKeys) > 0 && role != KeyAdmin:
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			logger.Warn("request_unauthorized", "path", path, "remote", ctx.RemoteAddr().String())
			return
		case !admin && len(cfg.FrontendKeys) > 0 && role != KeyFrontend:
			if role == KeyAdmin {
				router.WriteJSONError(ctx, fasthttp.StatusForbidden, "admin api keys may only access /admin routes")
				logger.Warn("admin_route_violation", "path", path, "remote", ctx.RemoteAddr().String())
				return
			}
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			logger.Warn("request_unauthorized", "path", path, "remote", ctx.RemoteAddr().String())
			return
		}

		if !g.limiters.Allow(key) {
			router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
			logger.Warn("rate_limited", "path", path)
			return
		}

		if !admin {
			v, verr := ResolveViewer(ctx, cfg.SigningKeys)
			if verr != nil {
				router.WriteJSONError(ctx, verr.Code, verr.Message)
				return
			}
			WithViewer(ctx, v)
		}
		next(ctx)
	}
}

// validateAPIKey returns the key's role and the rate limit bucket; requests
// without a key are bucketed by client ip.
func (g *Gateway) validateAPIKey(ctx *fasthttp.RequestCtx) (KeyRole, string) {
	key := extractAPIKey(ctx)
	if key == "" {
		return KeyUnauth, "ip:" + clientIP(ctx)
	}
	if _, ok := g.cfg.AdminKeys[key]; ok {
		return KeyAdmin, key
	}
	if _, ok := g.cfg.FrontendKeys[key]; ok {
		return KeyFrontend, key
	}
	return KeyUnauth, key
}

func extractAPIKey(ctx *fasthttp.RequestCtx) string {
	if k := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderAPIKey))); k != "" {
		return k
	}
	authz := string(ctx.Request.Header.Peek("Authorization"))
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

func clientIP(ctx *fasthttp.RequestCtx) string {
	host := ctx.RemoteAddr().String()
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}

func publicPath(ctx *fasthttp.RequestCtx) bool {
	path := string(ctx.Path())
	return (path == "/healthz" || path == "/readyz") && string(ctx.Method()) == fasthttp.MethodGet
}
