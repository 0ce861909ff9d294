package api

import (
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/MCIKIDS/mci.kids/pkg/api/auth"
	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/router"
)

type signRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type signResponse struct {
	Viewer    models.Viewer `json:"viewer"`
	Signature string        `json:"signature,omitempty"`
}

// Sign is the collaborator sign-in. Helpers only give a name; coordinators
// also need the coordinator password. The returned signature goes into
// X-User-Signature on later requests.
func (a *API) Sign(ctx *fasthttp.RequestCtx) {
	var req signRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	v := models.Viewer{Name: strings.TrimSpace(req.Name), Role: models.ParseRole(req.Role)}
	if !v.Resolved() {
		writeError(ctx, fmt.Errorf("%w: name and role are required", feed.ErrInvalidInput))
		return
	}
	if v.Role == models.RoleCoordinator {
		if err := a.checkCoordinatorPassword(req.Password); err != nil {
			logger.Warn("coordinator_sign_in_rejected", "name", v.Name, "remote", ctx.RemoteAddr().String())
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, err.Error())
			return
		}
	}

	resp := signResponse{Viewer: v}
	if len(a.opts.SigningKeys) > 0 {
		resp.Signature = auth.SignViewer(v, a.opts.SigningKeys[0])
	}
	logger.Info("viewer_signed_in", "name", v.Name, "role", v.Role)
	_ = router.WriteJSON(ctx, resp)
}

func (a *API) checkCoordinatorPassword(password string) error {
	if a.opts.CoordinatorPasswordHash == "" {
		return fmt.Errorf("coordinator sign-in is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.opts.CoordinatorPasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("invalid password")
	}
	return nil
}
