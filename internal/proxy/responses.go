package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

// inboundResponsesRequest is the subset of the OpenAI Responses API wire
// format this gateway understands: a model name and an input that is
// either a plain string (a single user message) or an array of
// role/content messages, matching the chat completions shape closely
// enough to route through the same ChatRequest.
type inboundResponsesRequest struct {
	Model           string          `json:"model"`
	Input           json.RawMessage `json:"input"`
	Instructions    string          `json:"instructions,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"top_p,omitempty"`
	MaxOutputTokens *int            `json:"max_output_tokens,omitempty"`
	Stream          bool            `json:"stream,omitempty"`
}

type responsesInputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// parseResponsesRequest decodes a Responses API body into a canonical
// providers.ChatRequest, the same request shape the failover loop drives
// regardless of which front-door route produced it.
func parseResponsesRequest(body []byte) (providers.ChatRequest, error) {
	var in inboundResponsesRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return providers.ChatRequest{}, fmt.Errorf("proxy: decode responses request: %w", err)
	}
	if in.Model == "" {
		return providers.ChatRequest{}, fmt.Errorf("proxy: responses request missing model")
	}

	var messages []providers.Message
	if in.Instructions != "" {
		messages = append(messages, providers.Message{Role: "system", Content: in.Instructions})
	}

	inputMessages, err := decodeResponsesInput(in.Input)
	if err != nil {
		return providers.ChatRequest{}, err
	}
	messages = append(messages, inputMessages...)

	req := providers.ChatRequest{
		Model:    in.Model,
		Messages: messages,
		Stream:   in.Stream,
	}
	if in.Temperature != nil {
		req.Temperature = in.Temperature
	}
	if in.TopP != nil {
		req.TopP = in.TopP
	}
	if in.MaxOutputTokens != nil {
		req.MaxTokens = in.MaxOutputTokens
	}
	return req, nil
}

// decodeResponsesInput handles the `input` union: a bare JSON string is a
// single user message, a JSON array is a list of role/content messages.
func decodeResponsesInput(raw json.RawMessage) ([]providers.Message, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []providers.Message{{Role: "user", Content: asString}}, nil
	}

	var asMessages []responsesInputMessage
	if err := json.Unmarshal(raw, &asMessages); err != nil {
		return nil, fmt.Errorf("proxy: decode responses input: %w", err)
	}
	out := make([]providers.Message, len(asMessages))
	for i, m := range asMessages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		out[i] = providers.Message{Role: role, Content: m.Content}
	}
	return out, nil
}

// responsesOutputContent is one OpenAI Responses "output_text" content
// part.
type responsesOutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// responsesOutputItem is one item of the Responses "output" array — this
// build only ever emits a single "message" item per response.
type responsesOutputItem struct {
	Type    string                    `json:"type"`
	Role    string                    `json:"role"`
	Content []responsesOutputContent `json:"content"`
}

// responsesUsage mirrors the Responses API's usage field names, which
// differ from chat completions' (input_tokens/output_tokens rather than
// prompt_tokens/completion_tokens).
type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// outboundResponsesResponse is the JSON envelope handleResponses returns.
type outboundResponsesResponse struct {
	ID        string                `json:"id"`
	Object    string                `json:"object"`
	Model     string                `json:"model"`
	CreatedAt int64                 `json:"created_at"`
	Status    string                `json:"status"`
	Output    []responsesOutputItem `json:"output"`
	Usage     *responsesUsage       `json:"usage,omitempty"`
}

// responsesFromChatResponse renders a canonical ChatResponse in the shape
// a Responses API client expects.
func responsesFromChatResponse(resp *providers.ChatResponse) outboundResponsesResponse {
	out := outboundResponsesResponse{
		ID:        resp.ID,
		Object:    "response",
		Model:     resp.Model,
		CreatedAt: resp.Created,
		Status:    "completed",
		Usage: &responsesUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	for _, choice := range resp.Choices {
		out.Output = append(out.Output, responsesOutputItem{
			Type: "message",
			Role: choice.Message.Role,
			Content: []responsesOutputContent{
				{Type: "output_text", Text: choice.Message.Content},
			},
		})
	}
	return out
}
