package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/MCIKIDS/mci.kids/pkg/logger"
	"github.com/MCIKIDS/mci.kids/pkg/models"
)

const (
	HeaderUserName      = "X-User-Name"
	HeaderRoleName      = "X-Role-Name"
	HeaderUserSignature = "X-User-Signature"
	HeaderAPIKey        = "X-API-Key"

	maxNameLength = 128
	viewerKey     = "viewer"
)

// ViewerResolutionError describes why request headers did not yield a viewer.
type ViewerResolutionError struct {
	Type    string
	Message string
	Code    int
}

func (e *ViewerResolutionError) Error() string {
	return e.Message
}

var (
	ErrNameTooLong      = &ViewerResolutionError{"name_too_long", "user name too long", fasthttp.StatusBadRequest}
	ErrMissingSignature = &ViewerResolutionError{"missing_signature", "missing viewer signature", fasthttp.StatusUnauthorized}
	ErrInvalidSignature = &ViewerResolutionError{"invalid_signature", "invalid viewer signature", fasthttp.StatusUnauthorized}
)

// creates an HMAC signature for a payload
func CreateHMACSignature(payload, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifies a payload against its HMAC signature using any of the keys
func VerifyHMACSignature(payload, signature string, keys []string) bool {
	for _, k := range keys {
		expected := CreateHMACSignature(payload, k)
		if hmac.Equal([]byte(expected), []byte(signature)) {
			return true
		}
	}
	return false
}

// viewerPayload is what gets signed: role plus the normalized name, so
// signatures survive case and whitespace differences in the header.
func viewerPayload(v models.Viewer) string {
	return string(v.Role) + ":" + v.Key()
}

// SignViewer returns the signature clients send back in X-User-Signature.
func SignViewer(v models.Viewer, key string) string {
	return CreateHMACSignature(viewerPayload(v), key)
}

// ResolveViewer reads the viewer headers. Missing or unknown roles and a
// blank name yield the anonymous viewer. When signing keys are configured a
// named viewer must carry a valid signature.
func ResolveViewer(ctx *fasthttp.RequestCtx, signingKeys []string) (models.Viewer, *ViewerResolutionError) {
	name := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderUserName)))
	role := models.ParseRole(string(ctx.Request.Header.Peek(HeaderRoleName)))
	v := models.Viewer{Name: name, Role: role}
	if !v.Resolved() {
		return models.Anonymous(), nil
	}
	if len(name) > maxNameLength {
		return models.Anonymous(), ErrNameTooLong
	}
	if len(signingKeys) == 0 {
		return v, nil
	}

	sig := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderUserSignature)))
	if sig == "" {
		logger.Warn("missing_signature_headers", "path", string(ctx.Path()), "remote", ctx.RemoteAddr().String())
		return models.Anonymous(), ErrMissingSignature
	}
	if !VerifyHMACSignature(viewerPayload(v), sig, signingKeys) {
		logger.Warn("invalid_signature", "user", name, "remote", ctx.RemoteAddr().String(), "path", string(ctx.Path()))
		return models.Anonymous(), ErrInvalidSignature
	}
	logger.Debug("signature_verified", "user", name, "role", role)
	return v, nil
}

// Viewer returns the viewer resolved by the middleware, anonymous if none.
func Viewer(ctx *fasthttp.RequestCtx) models.Viewer {
	if v, ok := ctx.UserValue(viewerKey).(models.Viewer); ok {
		return v
	}
	return models.Anonymous()
}

// WithViewer stores v on the request.
func WithViewer(ctx *fasthttp.RequestCtx, v models.Viewer) {
	ctx.SetUserValue(viewerKey, v)
}
