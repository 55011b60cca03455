package admin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/internal/data"
)

func TestHandleLogin_WrongPasswordRejected(t *testing.T) {
	a, facade := newTestAdmin()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	facade.CreateUser(nil, data.User{Email: "dev@example.test", PasswordHash: string(hash)})

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte(`{"email":"dev@example.test","password":"wrong-password"}`))

	a.handleLogin(ctx, auth.UserContext{})

	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", ctx.Response.StatusCode())
	}
}

func TestHandleLogin_IssuesSessionToken(t *testing.T) {
	a, facade := newTestAdmin()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	user, _ := facade.CreateUser(nil, data.User{Email: "dev@example.test", PasswordHash: string(hash)})

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetBody([]byte(`{"email":"dev@example.test","password":"correct-password"}`))

	a.handleLogin(ctx, auth.UserContext{})

	if ctx.Response.StatusCode() != fasthttp.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var resp loginResponse
	if err := json.Unmarshal(ctx.Response.Body(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a non-empty session token")
	}
	if resp.ExpiresAt.Before(time.Now().Add(29 * 24 * time.Hour)) {
		t.Fatalf("expected roughly a 30-day expiry, got %s", resp.ExpiresAt)
	}

	tokenID := a.sessionTokenID(resp.Token)
	stored, err := facade.GetSessionToken(nil, tokenID)
	if err != nil || stored == nil {
		t.Fatalf("expected session token to be resolvable by its derived ID, err=%v", err)
	}
	if stored.UserID != user.ID {
		t.Fatalf("expected token to belong to the authenticated user, got %s", stored.UserID)
	}
}

func TestHandleRevokeSession_OwnerCanRevoke(t *testing.T) {
	a, facade := newTestAdmin()
	userID := uuid.New()
	tokenID := uuid.New()
	facade.CreateSessionToken(nil, data.SessionToken{ID: tokenID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)})

	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue("id", tokenID.String())

	caller := auth.WebAppUserContext(data.SessionToken{ID: tokenID, UserID: userID}, data.User{ID: userID})
	a.handleRevokeSession(ctx, caller)

	if ctx.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("expected 204, got %d", ctx.Response.StatusCode())
	}
	stored, _ := facade.GetSessionToken(nil, tokenID)
	if !stored.Revoked {
		t.Fatal("expected session token to be revoked")
	}
}

func TestHandleRevokeSession_RejectsOtherUsersSession(t *testing.T) {
	a, facade := newTestAdmin()
	ownerID := uuid.New()
	otherID := uuid.New()
	tokenID := uuid.New()
	facade.CreateSessionToken(nil, data.SessionToken{ID: tokenID, UserID: ownerID, ExpiresAt: time.Now().Add(time.Hour)})

	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue("id", tokenID.String())

	caller := auth.WebAppUserContext(data.SessionToken{ID: uuid.New(), UserID: otherID}, data.User{ID: otherID})
	a.handleRevokeSession(ctx, caller)

	if ctx.Response.StatusCode() != fasthttp.StatusForbidden {
		t.Fatalf("expected 403, got %d", ctx.Response.StatusCode())
	}
}
