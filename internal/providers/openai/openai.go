package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaiSDK "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// Client calls OpenAI (or an OpenAI-wire-compatible endpoint) via the
// official SDK — no hand-rolled request/response marshaling, since the
// canonical request/response shape already matches what the SDK expects.
type Client struct {
	apiKey  string
	baseURL string
	client  openaiSDK.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, taking precedence over the
// endpoint passed to New.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New constructs a Client for one Connection's endpoint and credential.
// endpoint is the Connection's EndpointURL; an empty string selects the
// real OpenAI API.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{apiKey: apiKey, baseURL: endpoint}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	for _, o := range opts {
		o(c)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	c.client = openaiSDK.NewClient(
		option.WithAPIKey(c.apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(httpClient),
		// Retrying a failed status is the failover loop's decision (one
		// attempt per connection), so the SDK's own retries are off.
		option.WithMaxRetries(0),
	)
	return c
}

func (c *Client) Name() string { return providerName }

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai: health check: %w", toProviderError(err))
	}
	return nil
}

func toSDKMessage(role, content string) openaiSDK.ChatCompletionMessageParamUnion {
	switch strings.ToLower(role) {
	case "developer":
		return openaiSDK.DeveloperMessage(content)
	case "system":
		return openaiSDK.SystemMessage(content)
	case "assistant":
		return openaiSDK.AssistantMessage(content)
	default:
		return openaiSDK.UserMessage(content)
	}
}

func buildChatCompletionParams(req providers.ChatRequest) openaiSDK.ChatCompletionNewParams {
	msgs := make([]openaiSDK.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = toSDKMessage(m.Role, m.Content)
	}

	params := openaiSDK.ChatCompletionNewParams{Model: req.Model, Messages: msgs}
	if req.Temperature != nil {
		params.Temperature = openaiSDK.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openaiSDK.Float(*req.TopP)
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openaiSDK.Int(int64(*req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = openaiSDK.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	if req.ReasoningEffort != nil {
		params.ReasoningEffort = openaiSDK.ReasoningEffort(*req.ReasoningEffort)
	}
	if req.Verbosity != nil {
		params.Verbosity = openaiSDK.ChatCompletionNewParamsVerbosity(*req.Verbosity)
	}
	// PromptCacheRetention has no Chat Completions SDK field: it is
	// validated and carried on the canonical request but not sent upstream.
	// Tools and ToolChoice are not sent either.
	return params
}

// asIntArray reports whether raw (as decoded by encoding/json into
// interface{}) is a flat array of integers, returning it converted to
// int64 for the SDK's token-array embedding input.
func asIntArray(raw []interface{}) ([]int64, bool) {
	out := make([]int64, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok || f != float64(int64(f)) {
			return nil, false
		}
		out[i] = int64(f)
	}
	return out, true
}

func (c *Client) ChatCompletion(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	params := buildChatCompletionParams(req)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, toProviderError(err)
	}

	choices := make([]providers.Choice, len(resp.Choices))
	for i, ch := range resp.Choices {
		finish, err := providers.ParseFinishReason(string(ch.FinishReason))
		if err != nil {
			return nil, err
		}
		choices[i] = providers.Choice{
			Index:        int(ch.Index),
			Message:      providers.Message{Role: string(ch.Message.Role), Content: ch.Message.Content},
			FinishReason: finish,
		}
	}

	return &providers.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Created: resp.Created,
		Choices: choices,
		Usage: providers.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func (c *Client) ChatCompletionStream(ctx context.Context, req providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	params := buildChatCompletionParams(req)
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan providers.StreamChunk)
	go func() {
		defer close(out)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			ch := chunk.Choices[0]

			var usage *providers.Usage
			if chunk.Usage.TotalTokens > 0 {
				usage = &providers.Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}

			finish, err := providers.ParseFinishReason(string(ch.FinishReason))
			if err != nil {
				select {
				case out <- providers.StreamChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- providers.StreamChunk{
				Delta:        providers.Message{Role: string(ch.Delta.Role), Content: ch.Delta.Content},
				FinishReason: finish,
				Usage:        usage,
			}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- providers.StreamChunk{Err: toProviderError(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (c *Client) Embed(ctx context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	params := openaiSDK.EmbeddingNewParams{Model: openaiSDK.EmbeddingModel(req.Model)}

	// OpenAI natively accepts token-array input; forward it as-is instead
	// of collapsing to the (empty) Strings field when the client sent
	// []int or [][]int rather than text.
	switch tokens := req.Input.Raw.(type) {
	case []interface{}:
		if ints, ok := asIntArray(tokens); ok {
			params.Input = openaiSDK.EmbeddingNewParamsInputUnion{OfArrayOfTokens: ints}
			break
		}
		nested := make([][]int64, 0, len(tokens))
		for _, el := range tokens {
			inner, isArray := el.([]interface{})
			if !isArray {
				break
			}
			ints, ok := asIntArray(inner)
			if !ok {
				break
			}
			nested = append(nested, ints)
		}
		if len(nested) == len(tokens) {
			params.Input = openaiSDK.EmbeddingNewParamsInputUnion{OfArrayOfTokenArrays: nested}
			break
		}
		fallthrough
	default:
		params.Input = openaiSDK.EmbeddingNewParamsInputUnion{OfArrayOfStrings: req.Input.Strings}
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, toProviderError(err)
	}

	data := make([]providers.EmbeddingData, len(resp.Data))
	for i, d := range resp.Data {
		data[i] = providers.EmbeddingData{Index: int(d.Index), Embedding: d.Embedding}
	}

	return &providers.EmbeddingResponse{
		Model: resp.Model,
		Data:  data,
		Usage: providers.Usage{InputTokens: int(resp.Usage.PromptTokens)},
	}, nil
}

// ProviderError wraps a non-2xx OpenAI response with the fields the
// failover loop needs to classify it.
type ProviderError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus implements providers.StatusCoder.
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func toProviderError(err error) error {
	var sdkErr *openaiSDK.Error
	if errors.As(err, &sdkErr) {
		return &ProviderError{StatusCode: sdkErr.StatusCode, Message: sdkErr.Error(), Type: "openai_error"}
	}
	return err
}
