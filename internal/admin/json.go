package admin

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-gateway/internal/auth"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// authedHandler is a route handler that has already been resolved to a
// caller identity — unauthenticated, master key, or session-token user.
type authedHandler func(ctx *fasthttp.RequestCtx, user auth.UserContext)

// withAuth resolves the admin-surface headers into a UserContext before
// calling next. An unresolvable header (bad master key, expired session)
// writes the error itself; a missing header proceeds with an
// unauthenticated UserContext, same as auth.Resolver.Resolve's contract —
// each handler decides what that context is allowed to do.
func (a *Admin) withAuth(next authedHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		masterKey := string(ctx.Request.Header.Peek("X-LLMur-Key"))
		session := string(ctx.Request.Header.Peek("X-LLMur-Session"))

		user, err := a.resolver.Resolve(ctx, masterKey, session)
		if err != nil {
			writeErr(ctx, err)
			return
		}
		next(ctx, user)
	}
}

func readJSON(ctx *fasthttp.RequestCtx, v any) error {
	return json.Unmarshal(ctx.PostBody(), v)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(v)
	ctx.SetBody(body)
}

func writeErr(ctx *fasthttp.RequestCtx, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		apierr.WriteError(ctx, apiErr)
		return
	}
	apierr.WriteError(ctx, apierr.New(apierr.KindInternalError, err.Error()))
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
