// Package providers defines the canonical OpenAI-shaped request/response
// types the proxy pipeline (C6) operates on, and the Provider/
// EmbeddingProvider interfaces every upstream client implements.
//
// Per-provider wire translation lives in the provider subpackages
// (openai, azure, gemini, anthropic); this package only holds the shared
// canonical shape and the small set of cross-cutting interfaces.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// Circuit breaker defaults, used by proxy.CBConfig when a field is zero.
const (
	CBErrorThreshold  = 5
	CBTimeWindow      = 60 * time.Second
	CBHalfOpenTimeout = 30 * time.Second
)

// Message is one chat turn. Content is always normalized to plain text by
// the time it reaches this struct — the untagged-union wire handling
// (string | []part) lives at the OpenAI package boundary, in union.go.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"-"`
	OutputTokens int `json:"-"`
}

// MarshalJSON emits the OpenAI wire's three usage fields
// (prompt_tokens/completion_tokens/total_tokens) computed from the two
// Go-native fields, so the redundant total is never stored out of sync.
func (u Usage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	}{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	})
}

// UnmarshalJSON accepts the OpenAI wire's three usage fields, ignoring the
// redundant total_tokens (recomputed on demand by MarshalJSON).
func (u *Usage) UnmarshalJSON(b []byte) error {
	var wire struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	u.InputTokens = wire.PromptTokens
	u.OutputTokens = wire.CompletionTokens
	return nil
}

// ChatRequest is the canonical request shape the pipeline builds once from
// the inbound OpenAI-compatible body, and hands to a Transformation for
// every non-OpenAI connection.
type ChatRequest struct {
	Model                string                `json:"model"`
	Messages             []Message             `json:"messages"`
	Stream               bool                  `json:"stream,omitempty"`
	Temperature          *float64              `json:"temperature,omitempty"`
	TopP                 *float64              `json:"top_p,omitempty"`
	MaxTokens            *int                  `json:"max_tokens,omitempty"`
	Stop                 []string              `json:"stop,omitempty"`
	Tools                json.RawMessage       `json:"tools,omitempty"`
	ToolChoice           json.RawMessage       `json:"tool_choice,omitempty"`
	ReasoningEffort      *ReasoningEffort      `json:"reasoning_effort,omitempty"`
	Verbosity            *Verbosity            `json:"verbosity,omitempty"`
	PromptCacheRetention *PromptCacheRetention `json:"prompt_cache_retention,omitempty"`
}

// Choice is one completion candidate. ContentFilterResults is non-nil
// only for providers (Azure) that report per-category content-filter
// verdicts; it is never synthesized for providers that have no such
// concept.
type Choice struct {
	Index                int                            `json:"index"`
	Message              Message                        `json:"message"`
	FinishReason         FinishReason                   `json:"finish_reason"`
	ContentFilterResults map[string]ContentFilterResult `json:"content_filter_results,omitempty"`
}

// ChatResponse is the canonical response shape every provider transform
// must produce, regardless of the upstream's own wire format.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Created int64    `json:"created"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// StreamChunk is one server-sent-event delta.
type StreamChunk struct {
	Delta        Message
	FinishReason FinishReason
	// Usage is non-nil only on the final chunk, for providers that report
	// token usage at stream end (OpenAI with stream_options, Gemini).
	Usage *Usage
	Err   error
}

// EmbeddingInput accepts any of the OpenAI embeddings union shapes:
// string | []string | []int | [][]int. Text input fills Strings; a token
// array leaves Strings nil. Raw always holds the decoded value, and the
// OpenAI-wire clients forward token arrays from it; Gemini takes text only
// and reports a token-array input as dropped in its EmbeddingLoss.
type EmbeddingInput struct {
	Strings []string
	Raw     interface{}
}

// UnmarshalJSON implements the try-array-then-string parse used throughout
// this codebase for OpenAI's untagged union fields.
func (e *EmbeddingInput) UnmarshalJSON(b []byte) error {
	var asStrings []string
	if err := json.Unmarshal(b, &asStrings); err == nil {
		e.Strings = asStrings
		e.Raw = asStrings
		return nil
	}

	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		e.Strings = []string{asString}
		e.Raw = asString
		return nil
	}

	// Token arrays ([]int or [][]int): decode generically and defer
	// detokenization to the provider, which this layer does not perform.
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	e.Raw = raw
	return nil
}

// MarshalJSON re-emits Strings as a JSON array for the common text-input
// case; when the original request carried a token array instead (Strings
// never gets populated for that variant), it re-emits Raw so a token-array
// input survives a round trip through the canonical type instead of
// silently becoming an empty array.
func (e EmbeddingInput) MarshalJSON() ([]byte, error) {
	if e.Strings == nil && e.Raw != nil {
		return json.Marshal(e.Raw)
	}
	return json.Marshal(e.Strings)
}

// EmbeddingRequest is the canonical embeddings request shape.
type EmbeddingRequest struct {
	Model          string         `json:"model"`
	Input          EmbeddingInput `json:"input"`
	EncodingFormat string         `json:"encoding_format,omitempty"`
}

// EmbeddingData is one embedding vector in an EmbeddingResponse.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingResponse is the canonical embeddings response shape.
type EmbeddingResponse struct {
	Model string          `json:"model"`
	Data  []EmbeddingData `json:"data"`
	Usage Usage           `json:"usage"`
}

// StatusCoder is implemented by provider errors that carry the upstream's
// original HTTP status, so the failover loop (C6) can classify them
// without a type switch per provider package.
type StatusCoder interface {
	HTTPStatus() int
}

// Provider is implemented by each provider package's HTTP-calling client.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// EmbeddingProvider is implemented by providers that support embeddings.
// Not every Provider does (Anthropic does not); callers type-assert.
type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

// Transformation pairs a translated Result with the Loss the translation
// could not represent on the wire — most importantly the canonical model
// name, when a connection's provider_model_override must be substituted
// back into the outbound URL or body by the caller (C6).
type Transformation[R any, L any] struct {
	Result R
	Loss   L
}

// RetryableStatuses are the HTTP statuses the failover loop treats as
// retryable — exactly this set, per the component design; no other status
// is retried.
var RetryableStatuses = map[int]bool{
	408: true, 425: true, 429: true, 500: true, 502: true, 503: true, 504: true,
}

// NonRetryableStatuses exhaust the failover loop immediately without
// trying further connections.
var NonRetryableStatuses = map[int]bool{
	400: true, 401: true, 403: true, 404: true, 422: true,
}
