package openai

import (
	"encoding/json"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

// inboundMessage is the wire shape of one element of the client's
// "messages" array, before the untagged content union is resolved.
type inboundMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// InboundChatRequest is the raw wire shape POSTed to /v1/chat/completions,
// before ParseChatRequest resolves its untagged unions into the canonical
// providers.ChatRequest.
type InboundChatRequest struct {
	Model                string                         `json:"model"`
	Messages             []inboundMessage               `json:"messages"`
	Stream               bool                           `json:"stream"`
	Temperature          *float64                       `json:"temperature"`
	TopP                 *float64                       `json:"top_p"`
	MaxTokens            *int                           `json:"max_tokens"`
	Stop                 json.RawMessage                `json:"stop"`
	Tools                json.RawMessage                `json:"tools"`
	ToolChoice           json.RawMessage                `json:"tool_choice"`
	// ReasoningEffort/Verbosity/PromptCacheRetention are closed enums —
	// their UnmarshalJSON rejects an unrecognized value outright, so a
	// malformed request never silently falls back to a default.
	ReasoningEffort      *providers.ReasoningEffort      `json:"reasoning_effort"`
	Verbosity            *providers.Verbosity            `json:"verbosity"`
	PromptCacheRetention *providers.PromptCacheRetention `json:"prompt_cache_retention"`
}

// InboundEmbeddingRequest is the raw wire shape POSTed to /v1/embeddings.
type InboundEmbeddingRequest struct {
	Model          string          `json:"model"`
	Input          json.RawMessage `json:"input"`
	EncodingFormat string          `json:"encoding_format"`
}
