// Package apierr provides structured API error types and HTTP status mapping
// compatible with the OpenAI error format.
package apierr

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"
)

// Kind is the taxonomy of internal error conditions a component can raise.
// Every Kind has exactly one HTTP status, except UpstreamError which
// passes the upstream's own status through unchanged.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindUnauthenticated     Kind = "unauthenticated"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindKeyBlocked          Kind = "key_blocked"
	KindAccessDenied        Kind = "access_denied"
	KindResourceNotFound    Kind = "resource_not_found"
	KindModelNotAllowed     Kind = "model_not_allowed"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamMalformed   Kind = "upstream_malformed"
	KindUpstreamError       Kind = "upstream_error"
	KindInternalError       Kind = "internal_error"
)

// kindStatus maps a Kind to its fixed HTTP status. KindUpstreamError is
// handled separately: its status travels with the Error value itself,
// because it passes the upstream's own status through.
var kindStatus = map[Kind]int{
	KindBadRequest:          fasthttp.StatusBadRequest,
	KindUnauthenticated:     fasthttp.StatusUnauthorized,
	KindInvalidCredentials:  fasthttp.StatusUnauthorized,
	KindKeyBlocked:          fasthttp.StatusForbidden,
	KindAccessDenied:        fasthttp.StatusForbidden,
	KindResourceNotFound:    fasthttp.StatusNotFound,
	KindModelNotAllowed:     fasthttp.StatusNotFound,
	KindUpstreamUnavailable: fasthttp.StatusBadGateway,
	KindUpstreamMalformed:   fasthttp.StatusBadGateway,
	KindInternalError:       fasthttp.StatusInternalServerError,
}

// Error is the typed error every component returns once a failure crosses
// a component boundary, so C9 never has to re-classify an opaque error
// string to pick an HTTP status.
type Error struct {
	Kind    Kind
	Message string
	// Status overrides kindStatus; only meaningful (and required) for
	// KindUpstreamError, which passes the upstream's own status through.
	Status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatus implements the StatusCoder interface the proxy pipeline uses
// to pick a response status without a type switch per call site.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := kindStatus[e.Kind]; ok {
		return s
	}
	return fasthttp.StatusInternalServerError
}

// New constructs an Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Upstream constructs a KindUpstreamError carrying the upstream's own
// HTTP status through to the client unchanged.
func Upstream(status int, message string) *Error {
	return &Error{Kind: KindUpstreamError, Message: message, Status: status}
}

// WriteError renders a typed Error as the client-facing JSON envelope.
func WriteError(ctx *fasthttp.RequestCtx, err *Error) {
	Write(ctx, err.HTTPStatus(), err.Message, string(err.Kind), string(err.Kind))
}

// ErrorType constants.
const (
	TypeProviderError     = "provider_error"
	TypeRateLimitError    = "rate_limit_error"
	TypeInvalidRequest    = "invalid_request_error"
	TypeAuthenticationErr = "authentication_error"
	TypeServerError       = "server_error"
)

// Code constants.
const (
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeInternalError     = "internal_error"
	CodeProviderError     = "provider_error"
	CodeRequestTimeout    = "request_timeout"
	CodeNotImplemented    = "not_implemented"
	CodeInvalidRequest    = "invalid_request"
)

// APIError is the structured error returned to clients.
type (
	APIError struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	}
	envelope struct {
		Error APIError `json:"error"`
	}
)

// Write writes the error as JSON to the fasthttp response with the given HTTP status.
func Write(ctx *fasthttp.RequestCtx, status int, message, errType, code string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(envelope{Error: APIError{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
	ctx.SetBody(body)
}

// WriteProviderError maps a provider HTTP status to the appropriate gateway status.
//
//	Provider 429  → 429 + Retry-After: 60
//	Provider 5xx  → 502
//	Default       → 502
//
// Timeouts are not detected here; WriteTimeout writes the 504.
func WriteProviderError(ctx *fasthttp.RequestCtx, providerStatus int, msg string) {
	switch {
	case providerStatus == fasthttp.StatusTooManyRequests:
		ctx.Response.Header.Set("Retry-After", "60")
		Write(ctx, fasthttp.StatusTooManyRequests, msg, TypeRateLimitError, CodeRateLimitExceeded)
	case providerStatus >= 500 && providerStatus < 600:
		Write(ctx, fasthttp.StatusBadGateway, msg, TypeProviderError, CodeProviderError)
	default:
		Write(ctx, fasthttp.StatusBadGateway, msg, TypeProviderError, CodeProviderError)
	}
}

// WriteTimeout writes a 504 timeout error.
func WriteTimeout(ctx *fasthttp.RequestCtx) {
	Write(ctx, fasthttp.StatusGatewayTimeout, "provider request timed out", TypeProviderError, CodeRequestTimeout)
}

// WriteRateLimit writes a 429 rate limit error.
func WriteRateLimit(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Retry-After", "60")
	Write(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded", TypeRateLimitError, CodeRateLimitExceeded)
}
