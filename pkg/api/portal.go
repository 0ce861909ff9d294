package api

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/pkg/api/auth"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/router"
)

type studentRequest struct {
	Name string `json:"name"`
}

type attendanceRequest struct {
	StudentID string `json:"student_id"`
	Day       string `json:"day"`
	Present   bool   `json:"present"`
}

type overrideRequest struct {
	AllowEditsAfterClosure bool `json:"allow_edits_after_closure"`
}

// Amount is accepted as a number or as a string with a comma decimal.
type offeringRequest struct {
	Kind   string    `json:"kind"`
	Amount rawAmount `json:"amount"`
	Note   string    `json:"note"`
}

type fileRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ledgerResponse struct {
	Totals    models.LedgerTotals `json:"totals"`
	Offerings []models.Offering   `json:"offerings"`
}

// rawAmount keeps the raw amount text so ParseAmount sees what was sent.
type rawAmount string

func (j *rawAmount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	*j = rawAmount(raw)
	return nil
}

func (a *API) ListStudents(ctx *fasthttp.RequestCtx) {
	if _, ok := requireViewerOrFail(ctx); !ok {
		return
	}
	_ = router.WriteJSON(ctx, a.state.Students())
}

func (a *API) AddStudent(ctx *fasthttp.RequestCtx) {
	var req studentRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	st, err := a.state.AddStudent(auth.Viewer(ctx), req.Name)
	if err != nil {
		writeError(ctx, err)
		return
	}
	created(ctx, st)
}

// ListAttendance returns the records for ?day=YYYY-MM-DD, or every record.
func (a *API) ListAttendance(ctx *fasthttp.RequestCtx) {
	if _, ok := requireViewerOrFail(ctx); !ok {
		return
	}
	day := strings.TrimSpace(string(ctx.QueryArgs().Peek("day")))
	_ = router.WriteJSON(ctx, a.state.AttendanceFor(day))
}

func (a *API) MarkAttendance(ctx *fasthttp.RequestCtx) {
	var req attendanceRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	rec, err := a.state.MarkAttendance(auth.Viewer(ctx), req.StudentID, req.Day, req.Present)
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, rec)
}

func (a *API) AttendanceStatus(ctx *fasthttp.RequestCtx) {
	if _, ok := requireViewerOrFail(ctx); !ok {
		return
	}
	_ = router.WriteJSON(ctx, a.state.AttendanceStatus())
}

func (a *API) ToggleAttendanceClosure(ctx *fasthttp.RequestCtx) {
	status, err := a.state.ToggleAttendanceClosure(auth.Viewer(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, status)
}

func (a *API) SetAllowEditsAfterClosure(ctx *fasthttp.RequestCtx) {
	var req overrideRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	if err := a.state.SetAllowEditsAfterClosure(auth.Viewer(ctx), req.AllowEditsAfterClosure); err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, a.state.AttendanceStatus())
}

func (a *API) ListOfferings(ctx *fasthttp.RequestCtx) {
	if _, ok := requireViewerOrFail(ctx); !ok {
		return
	}
	_ = router.WriteJSON(ctx, ledgerResponse{Totals: a.state.Ledger(), Offerings: a.state.Offerings()})
}

func (a *API) RecordOffering(ctx *fasthttp.RequestCtx) {
	var req offeringRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	o, err := a.state.RecordOffering(auth.Viewer(ctx), req.Kind, string(req.Amount), req.Note)
	if err != nil {
		writeError(ctx, err)
		return
	}
	created(ctx, o)
}

func (a *API) CloseMonth(ctx *fasthttp.RequestCtx) {
	totals, err := a.state.CloseMonth(auth.Viewer(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, totals)
}

func (a *API) ListRegistrations(ctx *fasthttp.RequestCtx) {
	list, err := a.state.Registrations(auth.Viewer(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, list)
}

// CreateRegistration accepts a family sign-up; no viewer is required.
func (a *API) CreateRegistration(ctx *fasthttp.RequestCtx) {
	var form models.Registration
	if !a.decodeOrFail(ctx, &form, true) {
		return
	}
	out, err := a.state.Register(form)
	if err != nil {
		writeError(ctx, err)
		return
	}
	created(ctx, out)
}

func (a *API) ListFiles(ctx *fasthttp.RequestCtx) {
	if _, ok := requireViewerOrFail(ctx); !ok {
		return
	}
	_ = router.WriteJSON(ctx, a.state.Files())
}

func (a *API) AddFile(ctx *fasthttp.RequestCtx) {
	var req fileRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	f, err := a.state.AddFile(auth.Viewer(ctx), req.Name, req.URL)
	if err != nil {
		writeError(ctx, err)
		return
	}
	created(ctx, f)
}
