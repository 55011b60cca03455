package azure

import (
	"encoding/json"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

// wireMessage is Azure OpenAI's chat message shape, identical to the
// canonical shape — Azure diverges from OpenAI in URL/auth, not payload.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the azure-specific outbound body. Unlike the canonical
// shape, Azure's deployments API has no "model" field in the body at
// all — the model is selected entirely by the URL's deployment segment,
// which is the provider_model_override rule in action.
type ChatRequest struct {
	Messages             []wireMessage                  `json:"messages"`
	Stream               bool                           `json:"stream,omitempty"`
	Temperature          *float64                       `json:"temperature,omitempty"`
	TopP                 *float64                       `json:"top_p,omitempty"`
	MaxTokens            *int                           `json:"max_tokens,omitempty"`
	Stop                 []string                       `json:"stop,omitempty"`
	Tools                json.RawMessage                `json:"tools,omitempty"`
	ToolChoice           json.RawMessage                `json:"tool_choice,omitempty"`
	ReasoningEffort      *providers.ReasoningEffort      `json:"reasoning_effort,omitempty"`
	Verbosity            *providers.Verbosity            `json:"verbosity,omitempty"`
	PromptCacheRetention *providers.PromptCacheRetention `json:"prompt_cache_retention,omitempty"`
}

type wireContentFilterResult struct {
	Filtered bool                            `json:"filtered"`
	Severity providers.ContentFilterSeverity `json:"severity"`
}

type wireChoice struct {
	Index                int                                 `json:"index"`
	Message              wireMessage                         `json:"message"`
	FinishReason         string                              `json:"finish_reason"`
	ContentFilterResults map[string]wireContentFilterResult `json:"content_filter_results,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatResponse is the azure-specific wire response shape. Azure echoes
// its own internal deployment id in "model", which is discarded in favor
// of the canonical model name carried in Loss.
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Created int64        `json:"created"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireEmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingRequest is the azure-specific outbound embeddings body —
// again with no model field, for the same URL-selects-deployment reason.
// Input is whatever the canonical request's Strings or Raw union variant
// was (string, []string, []int or [][]int) — Azure's embeddings endpoint
// accepts the same input union OpenAI does, so no variant needs collapsing.
type EmbeddingRequest struct {
	Input          interface{} `json:"input"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

// EmbeddingResponse is the azure-specific wire embeddings response.
type EmbeddingResponse struct {
	Data  []wireEmbeddingData `json:"data"`
	Usage wireUsage           `json:"usage"`
}
