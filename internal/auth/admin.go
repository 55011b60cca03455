package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/cryptoutil"
	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// UserContext is the resolved identity of an admin-surface caller. Exactly
// one of the two constructors below produces a non-unauthenticated value;
// the zero value is the unauthenticated case.
type UserContext struct {
	kind         userContextKind
	User         *data.User
	SessionToken *data.SessionToken
}

type userContextKind int

const (
	kindUnauthenticated userContextKind = iota
	kindMasterUser
	kindWebAppUser
)

// MasterUserContext returns the UserContext for a caller that presented a
// valid master key.
func MasterUserContext() UserContext {
	return UserContext{kind: kindMasterUser}
}

// WebAppUserContext returns the UserContext for a caller that presented a
// valid session token resolving to the given user.
func WebAppUserContext(token data.SessionToken, user data.User) UserContext {
	return UserContext{kind: kindWebAppUser, User: &user, SessionToken: &token}
}

// IsMasterUser reports whether this context is the master-key caller.
func (c UserContext) IsMasterUser() bool { return c.kind == kindMasterUser }

// facade is the narrow slice of data.Facade this package drives — any
// data.Facade implementation satisfies it automatically, and tests can
// substitute a minimal fake without stubbing the full CRUD surface.
type facade interface {
	GetSessionToken(ctx context.Context, id uuid.UUID) (*data.SessionToken, error)
	GetUser(ctx context.Context, id uuid.UUID) (*data.User, error)
	GetMembership(ctx context.Context, projectID, userID uuid.UUID) (*data.Membership, error)
}

// Resolver resolves the admin-surface headers into a UserContext, looking
// up session tokens and their owning user through the Facade.
type Resolver struct {
	facade            facade
	masterKeys        [][]byte
	applicationSecret string
}

// NewResolver constructs a Resolver. masterKeys is the configured set of
// accepted master keys; applicationSecret is the same secret the data
// layer peppers encryption keys with, reused here to derive a session
// token's lookup ID the same way a virtual key derives its own.
func NewResolver(facade facade, masterKeys []string, applicationSecret string) *Resolver {
	keys := make([][]byte, len(masterKeys))
	for i, k := range masterKeys {
		keys[i] = []byte(k)
	}
	return &Resolver{facade: facade, masterKeys: keys, applicationSecret: applicationSecret}
}

// Resolve implements the precedence rule: X-LLMur-Key (master key) wins
// over X-LLMur-Session (session token); if neither header is present the
// result is an unauthenticated UserContext, not an error — authorization
// is decided per-route by RequireMasterUser/RequireProjectAdmin/
// RequireProjectDeveloper below.
func (r *Resolver) Resolve(ctx context.Context, masterKeyHeader, sessionHeader string) (UserContext, error) {
	if masterKeyHeader != "" {
		if !r.isMasterKey(masterKeyHeader) {
			return UserContext{}, apierr.New(apierr.KindInvalidCredentials, "invalid master key")
		}
		return MasterUserContext(), nil
	}
	if sessionHeader != "" {
		return r.resolveSessionToken(ctx, sessionHeader)
	}
	return UserContext{}, nil
}

// isMasterKey compares header against every configured master key in
// constant time, never short-circuiting on the first non-match so the
// comparison cost doesn't leak which key (if any) is close to a match.
func (r *Resolver) isMasterKey(header string) bool {
	given := []byte(header)
	match := false
	for _, k := range r.masterKeys {
		if len(k) == len(given) && subtle.ConstantTimeCompare(k, given) == 1 {
			match = true
		}
	}
	return match
}

func (r *Resolver) resolveSessionToken(ctx context.Context, raw string) (UserContext, error) {
	id := sessionTokenID(raw, r.applicationSecret)

	token, err := r.facade.GetSessionToken(ctx, id)
	if err != nil {
		return UserContext{}, apierr.New(apierr.KindInternalError, fmt.Sprintf("fetch session token: %v", err))
	}
	if token == nil {
		return UserContext{}, apierr.New(apierr.KindInvalidCredentials, "session token not found")
	}
	if token.Revoked || time.Now().After(token.ExpiresAt) {
		return UserContext{}, apierr.New(apierr.KindInvalidCredentials, "session token expired or revoked")
	}

	user, err := r.facade.GetUser(ctx, token.UserID)
	if err != nil {
		return UserContext{}, apierr.New(apierr.KindInternalError, fmt.Sprintf("fetch session user: %v", err))
	}
	if user == nil {
		return UserContext{}, apierr.New(apierr.KindInvalidCredentials, "session user not found")
	}

	return WebAppUserContext(*token, *user), nil
}

// sessionTokenID derives a SessionToken row's lookup ID from the raw token
// string a caller presents, peppered with the operator's application
// secret the same way a Connection credential's encryption key is
// peppered, so the ID can't be recomputed without that secret.
func sessionTokenID(raw, applicationSecret string) uuid.UUID {
	return cryptoutil.DeriveID(raw + ":" + applicationSecret)
}

// RequireMasterUser fails unless ctx is the master-key caller.
func RequireMasterUser(ctx UserContext) error {
	if ctx.kind == kindMasterUser {
		return nil
	}
	return apierr.New(apierr.KindAccessDenied, "master key required")
}

// RequireProjectAdmin fails unless ctx is the master-key caller or a
// WebAppUser holding ProjectRoleAdmin on projectID.
func RequireProjectAdmin(ctx context.Context, f facade, u UserContext, projectID uuid.UUID) error {
	return requireProjectRole(ctx, f, u, projectID, data.ProjectRoleAdmin)
}

// RequireProjectDeveloper fails unless ctx is the master-key caller or a
// WebAppUser holding ProjectRoleAdmin or ProjectRoleDeveloper on
// projectID (admin satisfies the lesser developer requirement too).
func RequireProjectDeveloper(ctx context.Context, f facade, u UserContext, projectID uuid.UUID) error {
	return requireProjectRole(ctx, f, u, projectID, data.ProjectRoleDeveloper)
}

func requireProjectRole(ctx context.Context, f facade, u UserContext, projectID uuid.UUID, minRole data.ProjectRole) error {
	if u.kind == kindMasterUser {
		return nil
	}
	if u.kind != kindWebAppUser {
		return apierr.New(apierr.KindUnauthenticated, "authentication required")
	}

	membership, err := f.GetMembership(ctx, projectID, u.User.ID)
	if err != nil {
		return apierr.New(apierr.KindInternalError, fmt.Sprintf("fetch membership: %v", err))
	}
	if membership == nil {
		return apierr.New(apierr.KindAccessDenied, "not a member of this project")
	}
	if membership.Role == data.ProjectRoleAdmin {
		return nil
	}
	if minRole == data.ProjectRoleDeveloper && membership.Role == data.ProjectRoleDeveloper {
		return nil
	}
	return apierr.New(apierr.KindAccessDenied, "insufficient project role")
}
