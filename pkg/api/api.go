package api

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/pkg/api/auth"
	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/portal"
	"github.com/MCIKIDS/mci.kids/pkg/router"
)

const defaultMaxPayloadSize = 100 * 1024

// Options configures the portal handlers.
type Options struct {
	// SigningKeys sign viewers at /v1/sign; the first key signs.
	SigningKeys             []string
	CoordinatorPasswordHash string
	ShareTitle              string
	MaxPayloadSize          int
	Clock                   func() time.Time
}

// API serves the portal state over HTTP.
type API struct {
	state *portal.State
	opts  Options
}

func New(state *portal.State, opts Options) *API {
	if opts.MaxPayloadSize <= 0 {
		opts.MaxPayloadSize = defaultMaxPayloadSize
	}
	if opts.ShareTitle == "" {
		opts.ShareTitle = feed.DefaultShareTitle
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &API{state: state, opts: opts}
}

// Register mounts the portal routes.
func (a *API) Register(r *router.Router) {
	r.POST("/v1/sign", a.Sign)

	r.GET("/v1/posts", a.ListPosts)
	r.GET("/v1/posts/public", a.PublicPosts)
	r.POST("/v1/posts", a.CreatePost)
	r.GET("/v1/posts/{id}", a.GetPost)
	r.DELETE("/v1/posts/{id}", a.DeletePost)
	r.POST("/v1/posts/{id}/reactions", a.React)
	r.POST("/v1/posts/{id}/comments", a.Comment)
	r.POST("/v1/posts/{id}/taps", a.Tap)
	r.GET("/v1/posts/{id}/share", a.Share)

	r.GET("/v1/students", a.ListStudents)
	r.POST("/v1/students", a.AddStudent)
	r.GET("/v1/attendance", a.ListAttendance)
	r.POST("/v1/attendance", a.MarkAttendance)
	r.GET("/v1/attendance/closure", a.AttendanceStatus)
	r.POST("/v1/attendance/closure", a.ToggleAttendanceClosure)
	r.PUT("/v1/attendance/closure", a.SetAllowEditsAfterClosure)

	r.GET("/v1/offerings", a.ListOfferings)
	r.POST("/v1/offerings", a.RecordOffering)
	r.POST("/v1/offerings/close-month", a.CloseMonth)

	r.GET("/v1/registrations", a.ListRegistrations)
	r.POST("/v1/registrations", a.CreateRegistration)
	r.GET("/v1/files", a.ListFiles)
	r.POST("/v1/files", a.AddFile)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(ctx *fasthttp.RequestCtx, err error) {
	kind := feed.Kind(err)
	switch kind {
	case "unauthenticated":
		router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, err.Error())
	case "unauthorized":
		router.WriteJSONError(ctx, fasthttp.StatusForbidden, err.Error())
	case "invalid_input":
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
	case "not_found":
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, err.Error())
	default:
		logger.Error("request_failed", "path", string(ctx.Path()), "kind", kind, "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}

// decodeOrFail reads a JSON body into dst; an empty body leaves dst untouched
// unless required is set.
func (a *API) decodeOrFail(ctx *fasthttp.RequestCtx, dst any, required bool) bool {
	body := ctx.PostBody()
	if len(body) == 0 {
		if required {
			router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "empty request payload")
			return false
		}
		return true
	}
	if len(body) > a.opts.MaxPayloadSize {
		router.WriteJSONError(ctx, fasthttp.StatusRequestEntityTooLarge, "request payload too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid json payload")
		return false
	}
	return true
}

func extractParamOrFail(ctx *fasthttp.RequestCtx, param, missingMsg string) (string, bool) {
	val := router.Param(ctx, param)
	if val == "" {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, missingMsg)
		return "", false
	}
	return val, true
}

// requireViewerOrFail guards staff-only reads.
func requireViewerOrFail(ctx *fasthttp.RequestCtx) (models.Viewer, bool) {
	v := auth.Viewer(ctx)
	if !v.Resolved() {
		writeError(ctx, feed.ErrUnauthenticated)
		return v, false
	}
	return v, true
}

func created(ctx *fasthttp.RequestCtx, v any) {
	_ = router.WriteJSONStatus(ctx, fasthttp.StatusCreated, v)
}
