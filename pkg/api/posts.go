package api

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/pkg/api/auth"
	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/models"
	"github.com/MCIKIDS/mci.kids/pkg/portal"
	"github.com/MCIKIDS/mci.kids/pkg/router"
)

type createPostRequest struct {
	Body     string `json:"body"`
	Category string `json:"category"`
	Public   bool   `json:"public"`
	Mentions string `json:"mentions"`
}

type reactRequest struct {
	Reaction string `json:"reaction"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type reactResponse struct {
	Outcome feed.ReactionOutcome `json:"outcome"`
	Post    models.Post          `json:"post"`
}

type shareResponse struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// ListPosts serves the viewer's feed; ?author= narrows it to one profile.
func (a *API) ListPosts(ctx *fasthttp.RequestCtx) {
	author := strings.TrimSpace(string(ctx.QueryArgs().Peek("author")))
	_ = router.WriteJSON(ctx, a.state.Feed(auth.Viewer(ctx), author))
}

func (a *API) PublicPosts(ctx *fasthttp.RequestCtx) {
	_ = router.WriteJSON(ctx, a.state.PublicFeed())
}

func (a *API) GetPost(ctx *fasthttp.RequestCtx) {
	id, ok := extractParamOrFail(ctx, "id", "missing post id")
	if !ok {
		return
	}
	p, err := a.state.Post(auth.Viewer(ctx), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, p)
}

func (a *API) CreatePost(ctx *fasthttp.RequestCtx) {
	var req createPostRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	p, err := a.state.CreatePost(auth.Viewer(ctx), portal.NewPost{
		Body:     req.Body,
		Category: models.Category(req.Category),
		Public:   req.Public,
		Mentions: req.Mentions,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	created(ctx, p)
}

func (a *API) DeletePost(ctx *fasthttp.RequestCtx) {
	id, ok := extractParamOrFail(ctx, "id", "missing post id")
	if !ok {
		return
	}
	if err := a.state.DeletePost(auth.Viewer(ctx), id); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (a *API) React(ctx *fasthttp.RequestCtx) {
	id, ok := extractParamOrFail(ctx, "id", "missing post id")
	if !ok {
		return
	}
	var req reactRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	r, ok := models.ParseReaction(req.Reaction)
	if !ok {
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, "unknown reaction")
		return
	}
	p, outcome, err := a.state.React(auth.Viewer(ctx), id, r)
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, reactResponse{Outcome: outcome, Post: p})
}

func (a *API) Comment(ctx *fasthttp.RequestCtx) {
	id, ok := extractParamOrFail(ctx, "id", "missing post id")
	if !ok {
		return
	}
	var req commentRequest
	if !a.decodeOrFail(ctx, &req, true) {
		return
	}
	p, err := a.state.Comment(auth.Viewer(ctx), id, req.Text)
	if err != nil {
		writeError(ctx, err)
		return
	}
	created(ctx, p)
}

// Tap records one tap on the post surface; two within the window react
// with a heart. Taps are timed by the server clock only.
func (a *API) Tap(ctx *fasthttp.RequestCtx) {
	id, ok := extractParamOrFail(ctx, "id", "missing post id")
	if !ok {
		return
	}
	res, err := a.state.Tap(auth.Viewer(ctx), id, a.opts.Clock())
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, res)
}

// responseClipboard hands the share text back to the client, which copies it.
type responseClipboard struct {
	text string
}

func (c *responseClipboard) Copy(_ context.Context, text string) error {
	c.text = text
	return nil
}

func (a *API) Share(ctx *fasthttp.RequestCtx) {
	id, ok := extractParamOrFail(ctx, "id", "missing post id")
	if !ok {
		return
	}
	text, err := a.state.ShareText(auth.Viewer(ctx), id, a.opts.ShareTitle)
	if err != nil {
		writeError(ctx, err)
		return
	}
	clip := &responseClipboard{}
	channel, err := feed.Share(ctx, text, nil, clip)
	if err != nil {
		writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, shareResponse{Channel: channel, Text: clip.text})
}
