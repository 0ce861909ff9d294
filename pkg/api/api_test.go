package api

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/MCIKIDS/mci.kids/pkg/api/auth"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/portal"
	"github.com/MCIKIDS/mci.kids/pkg/router"
)

type who struct {
	name, role string
}

var (
	lia  = who{"Lia", "coordinator"}
	ana  = who{"Ana", "helper"}
	beto = who{"Beto", "helper"}
	anon = who{}
)

type harness struct {
	t       *testing.T
	handler fasthttp.RequestHandler
	state   *portal.State
}

func newHarness(t *testing.T, opts Options, sec auth.SecConfig) *harness {
	t.Helper()
	n := 0
	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	state := portal.New(portal.Options{
		Clock: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Minute)
			return clock
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	r := router.New()
	New(state, opts).Register(r)
	g := auth.NewGateway(sec)
	t.Cleanup(g.Close)
	return &harness{t: t, handler: g.Wrap(r.Handler), state: state}
}

func (h *harness) do(method, path string, as who, body any, extra ...string) (int, []byte) {
	h.t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if as.name != "" {
		req.Header.Set(auth.HeaderUserName, as.name)
		req.Header.Set(auth.HeaderRoleName, as.role)
	}
	for i := 0; i+1 < len(extra); i += 2 {
		req.Header.Set(extra[i], extra[i+1])
	}
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		req.SetBody(b)
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000}, nil)
	h.handler(ctx)
	return ctx.Response.StatusCode(), append([]byte(nil), ctx.Response.Body()...)
}

func (h *harness) createPost(as who, body map[string]any) models.Post {
	h.t.Helper()
	code, raw := h.do("POST", "/v1/posts", as, body)
	require.Equal(h.t, fasthttp.StatusCreated, code, string(raw))
	var p models.Post
	require.NoError(h.t, json.Unmarshal(raw, &p))
	return p
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestPostLifecycle(t *testing.T) {
	h := newHarness(t, Options{}, auth.SecConfig{})

	p := h.createPost(lia, map[string]any{"body": "Culto domingo", "category": "Event", "public": true})
	assert.Equal(t, models.CategoryEvent, p.Category)
	assert.Equal(t, "Lia", p.Author)

	code, raw := h.do("POST", "/v1/posts/"+p.ID+"/reactions", ana, map[string]string{"reaction": "like"})
	require.Equal(t, 200, code, string(raw))
	rr := decode[reactResponse](t, raw)
	assert.Equal(t, "added", string(rr.Outcome))
	assert.Equal(t, 1, rr.Post.ReactionCounts[models.ReactionLike])

	code, raw = h.do("POST", "/v1/posts/"+p.ID+"/reactions", ana, map[string]string{"reaction": "party"})
	require.Equal(t, 200, code)
	rr = decode[reactResponse](t, raw)
	assert.Equal(t, "moved", string(rr.Outcome))
	assert.Equal(t, 0, rr.Post.ReactionCounts[models.ReactionLike])

	code, raw = h.do("POST", "/v1/posts/"+p.ID+"/comments", anon, map[string]string{"text": " amém "})
	require.Equal(t, fasthttp.StatusCreated, code, string(raw))
	withComment := decode[models.Post](t, raw)
	require.Len(t, withComment.Comments, 1)
	assert.Equal(t, "Visitor", withComment.Comments[0].Author)

	code, raw = h.do("GET", "/v1/posts/public", anon, nil)
	require.Equal(t, 200, code)
	assert.Len(t, decode[[]models.Post](t, raw), 1)

	code, _ = h.do("DELETE", "/v1/posts/"+p.ID, beto, nil)
	assert.Equal(t, fasthttp.StatusForbidden, code)
	code, _ = h.do("DELETE", "/v1/posts/"+p.ID, lia, nil)
	assert.Equal(t, fasthttp.StatusNoContent, code)
	code, _ = h.do("GET", "/v1/posts/"+p.ID, lia, nil)
	assert.Equal(t, fasthttp.StatusNotFound, code)
}

func TestErrorStatusMapping(t *testing.T) {
	h := newHarness(t, Options{MaxPayloadSize: 64}, auth.SecConfig{})
	p := h.createPost(ana, map[string]any{"body": "x", "category": "notice"})

	tests := []struct {
		name   string
		method string
		path   string
		as     who
		body   any
		want   int
	}{
		{"anonymous create", "POST", "/v1/posts", anon, map[string]any{"body": "x", "category": "notice"}, 401},
		{"blank body", "POST", "/v1/posts", ana, map[string]any{"body": "  ", "category": "notice"}, 400},
		{"bad category", "POST", "/v1/posts", ana, map[string]any{"body": "x", "category": "gossip"}, 400},
		{"empty payload", "POST", "/v1/posts", ana, nil, 400},
		{"too large", "POST", "/v1/posts", ana, map[string]any{"body": string(make([]byte, 100)), "category": "notice"}, 413},
		{"unknown reaction", "POST", "/v1/posts/" + p.ID + "/reactions", ana, map[string]string{"reaction": "wow"}, 400},
		{"unknown post", "POST", "/v1/posts/nope/reactions", ana, map[string]string{"reaction": "like"}, 404},
		{"anonymous react", "POST", "/v1/posts/" + p.ID + "/reactions", anon, map[string]string{"reaction": "like"}, 401},
		{"blank comment", "POST", "/v1/posts/" + p.ID + "/comments", ana, map[string]string{"text": ""}, 400},
		{"wrong method", "PUT", "/v1/posts", ana, nil, 405},
		{"unknown route", "GET", "/v1/nothing", ana, nil, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, raw := h.do(tt.method, tt.path, tt.as, tt.body)
			assert.Equal(t, tt.want, code, string(raw))
		})
	}
}

func TestFeedAudience(t *testing.T) {
	h := newHarness(t, Options{}, auth.SecConfig{})
	h.createPost(lia, map[string]any{"body": "escala", "category": "duty-roster", "mentions": "ana"})
	h.createPost(beto, map[string]any{"body": "aviso", "category": "notice", "public": true})

	_, raw := h.do("GET", "/v1/posts", ana, nil)
	assert.Len(t, decode[[]models.Post](t, raw), 2)
	_, raw = h.do("GET", "/v1/posts", beto, nil)
	assert.Len(t, decode[[]models.Post](t, raw), 1)
	_, raw = h.do("GET", "/v1/posts", anon, nil)
	assert.Len(t, decode[[]models.Post](t, raw), 1)
	_, raw = h.do("GET", "/v1/posts?author=LIA", ana, nil)
	assert.Len(t, decode[[]models.Post](t, raw), 1)
	_, raw = h.do("GET", "/v1/posts?author=lia", beto, nil)
	assert.Len(t, decode[[]models.Post](t, raw), 0)
}

func TestTapAndShare(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	h := newHarness(t, Options{ShareTitle: "MCI Kids", Clock: clock}, auth.SecConfig{})
	p := h.createPost(lia, map[string]any{"body": "Sala 2", "category": "duty-roster", "public": true})

	code, raw := h.do("POST", "/v1/posts/"+p.ID+"/taps", ana, nil)
	require.Equal(t, 200, code, string(raw))
	assert.False(t, decode[portal.TapResult](t, raw).DoubleTap)

	// a client supplied time does not stand in for the server clock
	advance(time.Second)
	far := now.Add(-time.Second).Add(100 * time.Millisecond)
	_, raw = h.do("POST", "/v1/posts/"+p.ID+"/taps", ana, map[string]any{"at": far})
	assert.False(t, decode[portal.TapResult](t, raw).DoubleTap)

	advance(120 * time.Millisecond)
	_, raw = h.do("POST", "/v1/posts/"+p.ID+"/taps", ana, nil)
	res := decode[portal.TapResult](t, raw)
	assert.True(t, res.DoubleTap)
	assert.Equal(t, 1, res.Post.ReactionCounts[models.ReactionHeart])

	code, raw = h.do("GET", "/v1/posts/"+p.ID+"/share", anon, nil)
	require.Equal(t, 200, code)
	share := decode[shareResponse](t, raw)
	assert.Equal(t, "clipboard", share.Channel)
	assert.Equal(t, "MCI Kids - DUTY-ROSTER\n\nSala 2", share.Text)
}

func TestSignIn(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("louvor"), bcrypt.MinCost)
	require.NoError(t, err)
	keys := []string{"sign-key"}
	h := newHarness(t, Options{SigningKeys: keys, CoordinatorPasswordHash: string(hash)}, auth.SecConfig{SigningKeys: keys})

	code, raw := h.do("POST", "/v1/sign", anon, map[string]string{"name": "Lia", "role": "coordinator", "password": "errada"})
	assert.Equal(t, 401, code, string(raw))

	code, raw = h.do("POST", "/v1/sign", anon, map[string]string{"name": "Lia", "role": "coordinator", "password": "louvor"})
	require.Equal(t, 200, code, string(raw))
	signed := decode[signResponse](t, raw)
	require.NotEmpty(t, signed.Signature)

	body := map[string]any{"body": "x", "category": "notice"}
	code, _ = h.do("POST", "/v1/posts", lia, body)
	assert.Equal(t, 401, code, "unsigned viewer must be rejected")
	code, _ = h.do("POST", "/v1/posts", lia, body, auth.HeaderUserSignature, signed.Signature)
	assert.Equal(t, 201, code)
	code, _ = h.do("POST", "/v1/posts", who{"Lia", "helper"}, body, auth.HeaderUserSignature, signed.Signature)
	assert.Equal(t, 401, code)

	code, raw = h.do("POST", "/v1/sign", anon, map[string]string{"name": "Ana", "role": "helper"})
	require.Equal(t, 200, code, string(raw))
	assert.NotEmpty(t, decode[signResponse](t, raw).Signature)

	code, _ = h.do("POST", "/v1/sign", anon, map[string]string{"name": " ", "role": "helper"})
	assert.Equal(t, 400, code)
}

func TestPortalSiblings(t *testing.T) {
	h := newHarness(t, Options{}, auth.SecConfig{})

	code, raw := h.do("POST", "/v1/students", lia, map[string]string{"name": "Bia"})
	require.Equal(t, 201, code, string(raw))
	st := decode[models.Student](t, raw)
	code, _ = h.do("POST", "/v1/students", ana, map[string]string{"name": "Caio"})
	assert.Equal(t, 403, code)
	code, _ = h.do("GET", "/v1/students", anon, nil)
	assert.Equal(t, 401, code)

	code, raw = h.do("POST", "/v1/attendance", ana, map[string]any{"student_id": st.ID, "day": "2026-03-01", "present": true})
	require.Equal(t, 200, code, string(raw))
	code, _ = h.do("POST", "/v1/attendance/closure", lia, nil)
	require.Equal(t, 200, code)
	code, _ = h.do("POST", "/v1/attendance", ana, map[string]any{"student_id": st.ID, "day": "2026-03-01", "present": false})
	assert.Equal(t, 403, code)
	code, _ = h.do("PUT", "/v1/attendance/closure", lia, map[string]bool{"allow_edits_after_closure": true})
	require.Equal(t, 200, code)
	code, _ = h.do("POST", "/v1/attendance", ana, map[string]any{"student_id": st.ID, "day": "2026-03-01", "present": false})
	assert.Equal(t, 200, code)
	_, raw = h.do("GET", "/v1/attendance?day=2026-03-01", ana, nil)
	assert.Len(t, decode[[]models.Attendance](t, raw), 1)

	code, raw = h.do("POST", "/v1/offerings", ana, map[string]any{"kind": "in", "amount": "12,50"})
	require.Equal(t, 201, code, string(raw))
	code, _ = h.do("POST", "/v1/offerings", ana, map[string]any{"kind": "out", "amount": 2.5})
	require.Equal(t, 201, code)
	code, _ = h.do("POST", "/v1/offerings", ana, map[string]any{"kind": "out", "amount": -1})
	assert.Equal(t, 400, code)
	_, raw = h.do("GET", "/v1/offerings", ana, nil)
	ledger := decode[ledgerResponse](t, raw)
	assert.Equal(t, 10.0, ledger.Totals.Balance)
	assert.Len(t, ledger.Offerings, 2)
	code, raw = h.do("POST", "/v1/offerings/close-month", lia, nil)
	require.Equal(t, 200, code)
	assert.Equal(t, 10.0, decode[models.LedgerTotals](t, raw).Accumulated)

	code, _ = h.do("POST", "/v1/registrations", anon, map[string]string{"name": "Davi", "phone": "1199"})
	assert.Equal(t, 201, code)
	code, _ = h.do("GET", "/v1/registrations", anon, nil)
	assert.Equal(t, 401, code)
	_, raw = h.do("GET", "/v1/registrations", ana, nil)
	assert.Len(t, decode[[]models.Registration](t, raw), 1)

	code, _ = h.do("POST", "/v1/files", lia, map[string]string{"name": "licao.pdf", "url": "https://example.org/l.pdf"})
	assert.Equal(t, 201, code)
	_, raw = h.do("GET", "/v1/files", ana, nil)
	assert.Len(t, decode[[]models.File](t, raw), 1)
}

func TestHiddenPostMutationsAreNotFound(t *testing.T) {
	h := newHarness(t, Options{}, auth.SecConfig{})
	p := h.createPost(lia, map[string]any{"body": "private for Ana", "category": "notice", "mentions": "Ana"})

	code, raw := h.do("POST", "/v1/posts/"+p.ID+"/reactions", beto, map[string]string{"reaction": "like"})
	assert.Equal(t, fasthttp.StatusNotFound, code)
	assert.NotContains(t, string(raw), "private for Ana")

	code, raw = h.do("POST", "/v1/posts/"+p.ID+"/comments", anon, map[string]string{"text": "hi"})
	assert.Equal(t, fasthttp.StatusNotFound, code)
	assert.NotContains(t, string(raw), "private for Ana")

	code, _ = h.do("POST", "/v1/posts/"+p.ID+"/taps", beto, nil)
	assert.Equal(t, fasthttp.StatusNotFound, code)

	code, raw = h.do("GET", "/v1/posts/"+p.ID, lia, nil)
	require.Equal(t, 200, code)
	stored := decode[models.Post](t, raw)
	assert.Empty(t, stored.Comments)
	assert.Equal(t, 0, stored.ReactionCounts[models.ReactionLike])

	code, _ = h.do("POST", "/v1/posts/"+p.ID+"/reactions", who{"ana", "helper"}, map[string]string{"reaction": "LIKE"})
	assert.Equal(t, 200, code)
}
