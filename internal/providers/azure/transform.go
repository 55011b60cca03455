package azure

import "github.com/nulpointcorp/llm-gateway/internal/providers"

// ChatLoss carries the fields Azure's deployments API drops from the
// body entirely: the canonical model name (selected by the URL's
// deployment segment instead, per the provider_model_override rule).
type ChatLoss struct {
	Model string
}

// TransformChatRequest translates the canonical request into Azure's
// deployments wire shape. The model never appears in the returned body;
// the caller must substitute Loss.Model into the outbound URL.
func TransformChatRequest(in providers.ChatRequest) providers.Transformation[ChatRequest, ChatLoss] {
	messages := make([]wireMessage, len(in.Messages))
	for i, m := range in.Messages {
		messages[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	return providers.Transformation[ChatRequest, ChatLoss]{
		Result: ChatRequest{
			Messages:             messages,
			Stream:               in.Stream,
			Temperature:          in.Temperature,
			TopP:                 in.TopP,
			MaxTokens:            in.MaxTokens,
			Stop:                 in.Stop,
			Tools:                in.Tools,
			ToolChoice:           in.ToolChoice,
			ReasoningEffort:      in.ReasoningEffort,
			Verbosity:            in.Verbosity,
			PromptCacheRetention: in.PromptCacheRetention,
		},
		Loss: ChatLoss{Model: in.Model},
	}
}

// TransformChatResponse translates an Azure response back to the
// canonical shape, re-substituting the canonical model name that Azure's
// wire response does not carry (it echoes its own deployment id instead).
// It fails if Azure echoes a finish_reason outside the closed set, rather
// than passing an unvalidated string through to the client.
func TransformChatResponse(in ChatResponse, canonicalModel string) (providers.ChatResponse, error) {
	choices := make([]providers.Choice, len(in.Choices))
	for i, c := range in.Choices {
		finish, err := providers.ParseFinishReason(c.FinishReason)
		if err != nil {
			return providers.ChatResponse{}, err
		}
		var filters map[string]providers.ContentFilterResult
		if len(c.ContentFilterResults) > 0 {
			filters = make(map[string]providers.ContentFilterResult, len(c.ContentFilterResults))
			for category, r := range c.ContentFilterResults {
				filters[category] = providers.ContentFilterResult{Filtered: r.Filtered, Severity: r.Severity}
			}
		}
		choices[i] = providers.Choice{
			Index:                c.Index,
			Message:              providers.Message{Role: c.Message.Role, Content: c.Message.Content},
			FinishReason:         finish,
			ContentFilterResults: filters,
		}
	}
	return providers.ChatResponse{
		ID:      in.ID,
		Model:   canonicalModel,
		Created: in.Created,
		Choices: choices,
		Usage: providers.Usage{
			InputTokens:  in.Usage.PromptTokens,
			OutputTokens: in.Usage.CompletionTokens,
		},
	}, nil
}

// EmbeddingLoss carries the canonical model name lost the same way chat
// requests lose it.
type EmbeddingLoss struct {
	Model string
}

// TransformEmbeddingRequest translates the canonical embeddings request
// into Azure's wire shape. Azure's embeddings endpoint accepts the same
// input union OpenAI does, so a token-array input (Strings left nil by
// EmbeddingInput.UnmarshalJSON) is forwarded via Raw rather than
// collapsing to an empty array.
func TransformEmbeddingRequest(in providers.EmbeddingRequest) providers.Transformation[EmbeddingRequest, EmbeddingLoss] {
	input := interface{}(in.Input.Strings)
	if in.Input.Strings == nil && in.Input.Raw != nil {
		input = in.Input.Raw
	}
	return providers.Transformation[EmbeddingRequest, EmbeddingLoss]{
		Result: EmbeddingRequest{Input: input, EncodingFormat: in.EncodingFormat},
		Loss:   EmbeddingLoss{Model: in.Model},
	}
}

// TransformEmbeddingResponse translates an Azure embeddings response back
// to the canonical shape.
func TransformEmbeddingResponse(in EmbeddingResponse, canonicalModel string) providers.EmbeddingResponse {
	data := make([]providers.EmbeddingData, len(in.Data))
	for i, d := range in.Data {
		data[i] = providers.EmbeddingData{Index: d.Index, Embedding: d.Embedding}
	}
	return providers.EmbeddingResponse{
		Model: canonicalModel,
		Data:  data,
		Usage: providers.Usage{
			InputTokens:  in.Usage.PromptTokens,
			OutputTokens: in.Usage.CompletionTokens,
		},
	}
}
