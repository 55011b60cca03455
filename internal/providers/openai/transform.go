package openai

import (
	"encoding/json"
	"fmt"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

// ParseChatRequest resolves the untagged unions in raw body bytes into the
// canonical providers.ChatRequest. This runs once per inbound client
// request, regardless of which connection's provider kind ultimately
// serves it — the "parse once" half of the parse-once-re-emit-many
// contract.
func ParseChatRequest(body []byte) (providers.ChatRequest, error) {
	var in InboundChatRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return providers.ChatRequest{}, fmt.Errorf("openai: decode chat request: %w", err)
	}

	messages := make([]providers.Message, len(in.Messages))
	for i, m := range in.Messages {
		content, err := UnmarshalContent(m.Content)
		if err != nil {
			return providers.ChatRequest{}, fmt.Errorf("openai: decode message %d content: %w", i, err)
		}
		messages[i] = providers.Message{Role: m.Role, Content: content}
	}

	stop, err := UnmarshalStop(in.Stop)
	if err != nil {
		return providers.ChatRequest{}, fmt.Errorf("openai: decode stop: %w", err)
	}

	return providers.ChatRequest{
		Model:                in.Model,
		Messages:             messages,
		Stream:               in.Stream,
		Temperature:          in.Temperature,
		TopP:                 in.TopP,
		MaxTokens:            in.MaxTokens,
		Stop:                 stop,
		Tools:                in.Tools,
		ToolChoice:           in.ToolChoice,
		ReasoningEffort:      in.ReasoningEffort,
		Verbosity:            in.Verbosity,
		PromptCacheRetention: in.PromptCacheRetention,
	}, nil
}

// ParseEmbeddingRequest resolves the embeddings input union into the
// canonical providers.EmbeddingRequest.
func ParseEmbeddingRequest(body []byte) (providers.EmbeddingRequest, error) {
	var in InboundEmbeddingRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return providers.EmbeddingRequest{}, fmt.Errorf("openai: decode embedding request: %w", err)
	}

	var input providers.EmbeddingInput
	if err := json.Unmarshal(in.Input, &input); err != nil {
		return providers.EmbeddingRequest{}, fmt.Errorf("openai: decode embedding input: %w", err)
	}

	return providers.EmbeddingRequest{
		Model:          in.Model,
		Input:          input,
		EncodingFormat: in.EncodingFormat,
	}, nil
}

// Loss is empty for the OpenAI connection. It does not record the
// canonical fields Client leaves out of the upstream request: Tools,
// ToolChoice and PromptCacheRetention are not sent, and no Loss field
// reports that.
type Loss struct{}

// TransformChatRequest is the identity transform: OpenAI connections speak
// the canonical wire format directly. The proxy pipeline does not call it;
// Client builds its SDK parameters from the canonical request itself.
func TransformChatRequest(in providers.ChatRequest) providers.Transformation[providers.ChatRequest, Loss] {
	return providers.Transformation[providers.ChatRequest, Loss]{Result: in, Loss: Loss{}}
}

// TransformChatResponse is the identity transform in the response
// direction.
func TransformChatResponse(in providers.ChatResponse) providers.Transformation[providers.ChatResponse, Loss] {
	return providers.Transformation[providers.ChatResponse, Loss]{Result: in, Loss: Loss{}}
}
