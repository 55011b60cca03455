package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
)

type fakeFacade struct {
	sessionTokens map[uuid.UUID]data.SessionToken
	users         map[uuid.UUID]data.User
	memberships   map[[2]uuid.UUID]data.Membership
}

func newFakeFacade() *fakeFacade {
	return &fakeFacade{
		sessionTokens: map[uuid.UUID]data.SessionToken{},
		users:         map[uuid.UUID]data.User{},
		memberships:   map[[2]uuid.UUID]data.Membership{},
	}
}

func (f *fakeFacade) GetSessionToken(ctx context.Context, id uuid.UUID) (*data.SessionToken, error) {
	if t, ok := f.sessionTokens[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeFacade) GetUser(ctx context.Context, id uuid.UUID) (*data.User, error) {
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeFacade) GetMembership(ctx context.Context, projectID, userID uuid.UUID) (*data.Membership, error) {
	if m, ok := f.memberships[[2]uuid.UUID{projectID, userID}]; ok {
		return &m, nil
	}
	return nil, nil
}

const applicationSecret = "test-application-secret"

func TestResolveMasterKeyTakesPrecedenceOverSession(t *testing.T) {
	r := NewResolver(newFakeFacade(), []string{"master-key-1"}, applicationSecret)
	ctx, err := r.Resolve(context.Background(), "master-key-1", "some-session-header")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !ctx.IsMasterUser() {
		t.Fatal("expected master user context")
	}
}

func TestResolveRejectsWrongMasterKey(t *testing.T) {
	r := NewResolver(newFakeFacade(), []string{"master-key-1"}, applicationSecret)
	if _, err := r.Resolve(context.Background(), "wrong-key", ""); err == nil {
		t.Fatal("expected error for invalid master key")
	}
}

func TestResolveNoHeadersReturnsUnauthenticatedContext(t *testing.T) {
	r := NewResolver(newFakeFacade(), []string{"master-key-1"}, applicationSecret)
	ctx, err := r.Resolve(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctx.IsMasterUser() {
		t.Fatal("expected non-master context")
	}
	if RequireMasterUser(ctx) == nil {
		t.Fatal("expected RequireMasterUser to reject unauthenticated context")
	}
}

func TestResolveSessionTokenResolvesUser(t *testing.T) {
	f := newFakeFacade()
	userID := uuid.New()
	rawToken := "session-raw-token"
	tokenID := sessionTokenID(rawToken, applicationSecret)
	f.sessionTokens[tokenID] = data.SessionToken{
		ID: tokenID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour),
	}
	f.users[userID] = data.User{ID: userID, Email: "dev@example.test"}

	r := NewResolver(f, []string{"master-key-1"}, applicationSecret)
	ctx, err := r.Resolve(context.Background(), "", rawToken)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ctx.IsMasterUser() || ctx.User == nil || ctx.User.Email != "dev@example.test" {
		t.Fatalf("expected web app user resolved, got %+v", ctx)
	}
}

func TestResolveSessionTokenRejectsExpired(t *testing.T) {
	f := newFakeFacade()
	userID := uuid.New()
	rawToken := "expired-token"
	tokenID := sessionTokenID(rawToken, applicationSecret)
	f.sessionTokens[tokenID] = data.SessionToken{
		ID: tokenID, UserID: userID, ExpiresAt: time.Now().Add(-time.Hour),
	}
	f.users[userID] = data.User{ID: userID}

	r := NewResolver(f, []string{"master-key-1"}, applicationSecret)
	if _, err := r.Resolve(context.Background(), "", rawToken); err == nil {
		t.Fatal("expected error for expired session token")
	}
}

func TestResolveSessionTokenRejectsRevoked(t *testing.T) {
	f := newFakeFacade()
	userID := uuid.New()
	rawToken := "revoked-token"
	tokenID := sessionTokenID(rawToken, applicationSecret)
	f.sessionTokens[tokenID] = data.SessionToken{
		ID: tokenID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour), Revoked: true,
	}
	f.users[userID] = data.User{ID: userID}

	r := NewResolver(f, []string{"master-key-1"}, applicationSecret)
	if _, err := r.Resolve(context.Background(), "", rawToken); err == nil {
		t.Fatal("expected error for revoked session token")
	}
}

func TestResolveSessionTokenNotFound(t *testing.T) {
	r := NewResolver(newFakeFacade(), []string{"master-key-1"}, applicationSecret)
	if _, err := r.Resolve(context.Background(), "", "unknown-token"); err == nil {
		t.Fatal("expected error for unknown session token")
	}
}

func TestRequireProjectAdminSatisfiedByMasterUser(t *testing.T) {
	if err := RequireProjectAdmin(context.Background(), newFakeFacade(), MasterUserContext(), uuid.New()); err != nil {
		t.Fatalf("expected master user to satisfy project admin check, got %v", err)
	}
}

func TestRequireProjectAdminRejectsDeveloperRole(t *testing.T) {
	f := newFakeFacade()
	projectID, userID := uuid.New(), uuid.New()
	f.memberships[[2]uuid.UUID{projectID, userID}] = data.Membership{
		ProjectID: projectID, UserID: userID, Role: data.ProjectRoleDeveloper,
	}
	ctx := WebAppUserContext(data.SessionToken{UserID: userID}, data.User{ID: userID})

	if err := RequireProjectAdmin(context.Background(), f, ctx, projectID); err == nil {
		t.Fatal("expected developer role to fail admin check")
	}
	if err := RequireProjectDeveloper(context.Background(), f, ctx, projectID); err != nil {
		t.Fatalf("expected developer role to satisfy developer check, got %v", err)
	}
}

func TestRequireProjectDeveloperRejectsNonMember(t *testing.T) {
	f := newFakeFacade()
	projectID, userID := uuid.New(), uuid.New()
	ctx := WebAppUserContext(data.SessionToken{UserID: userID}, data.User{ID: userID})

	if err := RequireProjectDeveloper(context.Background(), f, ctx, projectID); err == nil {
		t.Fatal("expected non-member to fail developer check")
	}
}

func TestRequireProjectAdminRejectsUnauthenticated(t *testing.T) {
	if err := RequireProjectAdmin(context.Background(), newFakeFacade(), UserContext{}, uuid.New()); err == nil {
		t.Fatal("expected unauthenticated context to fail project admin check")
	}
}
