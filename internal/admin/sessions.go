package admin

import (
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

const (
	sessionTokenSecretBytes = 32
	defaultSessionTTL       = "30d"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin verifies email and password against the stored bcrypt hash
// and mints a new SessionToken. It is unauthenticated by design — the
// credentials in the body are the proof of identity.
func (a *Admin) handleLogin(ctx *fasthttp.RequestCtx, _ auth.UserContext) {
	var req loginRequest
	if err := readJSON(ctx, &req); err != nil {
		writeErr(ctx, apierr.New(apierr.KindBadRequest, "invalid request body"))
		return
	}

	user, err := a.facade.GetUserByEmail(ctx, req.Email)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	if user == nil {
		writeErr(ctx, apierr.New(apierr.KindInvalidCredentials, "invalid email or password"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeErr(ctx, apierr.New(apierr.KindInvalidCredentials, "invalid email or password"))
		return
	}

	raw, err := cryptoutil.GenerateSecret("llmur-sess-", sessionTokenSecretBytes)
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	expiresAt, err := cryptoutil.ParseAndAddToCurrentTS(defaultSessionTTL, time.Now().UTC())
	if err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	token := data.SessionToken{
		ID:        a.sessionTokenID(raw),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}
	if _, err := a.facade.CreateSessionToken(ctx, token); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, loginResponse{Token: raw, ExpiresAt: token.ExpiresAt})
}

// handleRevokeSession allows the master key, or the session's own owner,
// to revoke a SessionToken by its row ID.
func (a *Admin) handleRevokeSession(ctx *fasthttp.RequestCtx, user auth.UserContext) {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		writeErr(ctx, err)
		return
	}

	if !user.IsMasterUser() {
		if user.SessionToken == nil || user.SessionToken.ID != id {
			writeErr(ctx, apierr.New(apierr.KindAccessDenied, "can only revoke your own session"))
			return
		}
	}

	if err := a.facade.RevokeSessionToken(ctx, id); err != nil {
		writeErr(ctx, apierr.New(apierr.KindInternalError, err.Error()))
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
