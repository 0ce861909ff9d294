package auth

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/pkg/models"
)

func request(method, path string, headers map[string]string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 4000}, nil)
	return ctx
}

func captureViewer(got *models.Viewer, called *bool) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		*called = true
		*got = Viewer(ctx)
	}
}

func TestSignAndVerifyViewer(t *testing.T) {
	v := models.Viewer{Name: "Ana", Role: models.RoleHelper}
	sig := SignViewer(v, "k1")
	assert.True(t, VerifyHMACSignature(viewerPayload(models.Viewer{Name: " ANA ", Role: models.RoleHelper}), sig, []string{"old", "k1"}))
	assert.False(t, VerifyHMACSignature(viewerPayload(models.Viewer{Name: "Ana", Role: models.RoleCoordinator}), sig, []string{"k1"}))
	assert.False(t, VerifyHMACSignature(viewerPayload(v), sig, nil))
}

func TestResolveViewer(t *testing.T) {
	keys := []string{"k1"}
	ana := models.Viewer{Name: "Ana", Role: models.RoleHelper}
	tests := []struct {
		name    string
		headers map[string]string
		keys    []string
		want    models.Viewer
		wantErr *ViewerResolutionError
	}{
		{"no headers", nil, keys, models.Anonymous(), nil},
		{"unknown role", map[string]string{HeaderUserName: "Ana", HeaderRoleName: "pastor"}, nil, models.Anonymous(), nil},
		{"unsigned trusted", map[string]string{HeaderUserName: " Ana ", HeaderRoleName: "Helper"}, nil, ana, nil},
		{"signed", map[string]string{HeaderUserName: "Ana", HeaderRoleName: "helper", HeaderUserSignature: SignViewer(ana, "k1")}, keys, ana, nil},
		{"missing signature", map[string]string{HeaderUserName: "Ana", HeaderRoleName: "helper"}, keys, models.Anonymous(), ErrMissingSignature},
		{"forged role", map[string]string{HeaderUserName: "Ana", HeaderRoleName: "coordinator", HeaderUserSignature: SignViewer(ana, "k1")}, keys, models.Anonymous(), ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveViewer(request("GET", "/v1/posts", tt.headers), tt.keys)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGatewayKeysAndRoutes(t *testing.T) {
	g := NewGateway(SecConfig{
		AllowedOrigins: []string{"https://mci.kids"},
		RPS:            1000,
		Burst:          1000,
		FrontendKeys:   KeySet([]string{"front"}),
		AdminKeys:      KeySet([]string{"admin"}),
	})
	defer g.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		headers    map[string]string
		wantStatus int
		wantCalled bool
	}{
		{"health is public", "GET", "/healthz", nil, 200, true},
		{"preflight", "OPTIONS", "/v1/posts", map[string]string{"Origin": "https://mci.kids"}, 204, false},
		{"missing key", "GET", "/v1/posts", nil, 401, false},
		{"frontend key", "GET", "/v1/posts", map[string]string{HeaderAPIKey: "front"}, 200, true},
		{"bearer key", "GET", "/v1/posts", map[string]string{"Authorization": "Bearer front"}, 200, true},
		{"admin key on portal", "GET", "/v1/posts", map[string]string{HeaderAPIKey: "admin"}, 403, false},
		{"frontend key on admin", "GET", "/admin/metrics", map[string]string{HeaderAPIKey: "front"}, 401, false},
		{"admin key on admin", "GET", "/admin/metrics", map[string]string{HeaderAPIKey: "admin"}, 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				called bool
				v      models.Viewer
			)
			ctx := request(tt.method, tt.path, tt.headers)
			g.Wrap(captureViewer(&v, &called))(ctx)
			assert.Equal(t, tt.wantStatus, ctx.Response.StatusCode())
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}

func TestGatewayCORSAndWhitelist(t *testing.T) {
	g := NewGateway(SecConfig{AllowedOrigins: []string{"*"}, IPWhitelist: []string{"10.0.0.7"}})
	defer g.Close()
	var called bool
	var v models.Viewer
	ctx := request("GET", "/v1/posts", map[string]string{"Origin": "https://x.test", HeaderUserName: "Lia", HeaderRoleName: "coordinator"})
	g.Wrap(captureViewer(&v, &called))(ctx)
	assert.True(t, called)
	assert.Equal(t, "https://x.test", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
	assert.True(t, v.IsCoordinator())

	blocked := NewGateway(SecConfig{IPWhitelist: []string{"127.0.0.1"}})
	defer blocked.Close()
	called = false
	ctx = request("GET", "/v1/posts", nil)
	blocked.Wrap(captureViewer(&v, &called))(ctx)
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
}

func TestGatewayRateLimit(t *testing.T) {
	g := NewGateway(SecConfig{RPS: 1, Burst: 2})
	defer g.Close()
	var called bool
	var v models.Viewer
	codes := []int{}
	for i := 0; i < 3; i++ {
		ctx := request("GET", "/v1/posts", nil)
		g.Wrap(captureViewer(&v, &called))(ctx)
		codes = append(codes, ctx.Response.StatusCode())
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestLimiterEvict(t *testing.T) {
	p := newLimiterPool(10, 10)
	defer p.Shutdown()
	p.Allow("a")
	p.Allow("b")
	assert.Equal(t, 0, p.evict(time.Now().Add(-time.Minute)))
	assert.Equal(t, 2, p.evict(time.Now().Add(time.Minute)))
}
