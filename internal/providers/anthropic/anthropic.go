package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	providerName   = "anthropic"
)

// Client calls the Anthropic Messages API via the official SDK. Anthropic
// has no embeddings endpoint, so Client intentionally does not implement
// providers.EmbeddingProvider — callers must type-assert before use.
type Client struct {
	apiKey  string
	baseURL string
	client  anthropic.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, taking precedence over the
// endpoint passed to New.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New constructs a Client for one Connection's endpoint and credential.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{apiKey: apiKey, baseURL: endpoint}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	for _, o := range opts {
		o(c)
	}

	c.client = anthropic.NewClient(
		option.WithAPIKey(c.apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	return c
}

func (c *Client) Name() string { return providerName }

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)})
	if err != nil {
		return fmt.Errorf("anthropic: health check: %w", toProviderError(err))
	}
	return nil
}

func toSDKMessage(role, content string) anthropic.MessageParam {
	r := anthropic.MessageParamRoleUser
	if strings.ToLower(role) == "assistant" {
		r = anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParam{
		Role:    r,
		Content: []anthropic.ContentBlockParamUnion{{OfText: &anthropic.TextBlockParam{Text: content}}},
	}
}

func buildParams(req providers.ChatRequest) anthropic.MessageNewParams {
	var system string
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if strings.ToLower(m.Role) == "system" {
			system = m.Content
			continue
		}
		msgs = append(msgs, toSDKMessage(m.Role, m.Content))
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	return params
}

func (c *Client) ChatCompletion(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	params := buildParams(req)

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, toProviderError(err)
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if tb, ok := b.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	finish, err := stopReasonFromAnthropic(string(msg.StopReason))
	if err != nil {
		return nil, err
	}

	return &providers.ChatResponse{
		ID:    msg.ID,
		Model: string(msg.Model),
		Choices: []providers.Choice{{
			Index:        0,
			Message:      providers.Message{Role: "assistant", Content: text.String()},
			FinishReason: finish,
		}},
		Usage: providers.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func (c *Client) ChatCompletionStream(ctx context.Context, req providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	params := buildParams(req)
	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan providers.StreamChunk)
	go func() {
		defer close(out)

		var inputTokens int
		for stream.Next() {
			ev := stream.Current()
			switch v := ev.AsAny().(type) {
			case anthropic.MessageStartEvent:
				inputTokens = int(v.Message.Usage.InputTokens)
			case anthropic.ContentBlockDeltaEvent:
				if td, ok := v.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
					select {
					case out <- providers.StreamChunk{Delta: providers.Message{Role: "assistant", Content: td.Text}}:
					case <-ctx.Done():
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				finish, err := stopReasonFromAnthropic(string(v.Delta.StopReason))
				if err != nil {
					select {
					case out <- providers.StreamChunk{Err: err}:
					case <-ctx.Done():
					}
					return
				}
				usage := providers.Usage{InputTokens: inputTokens, OutputTokens: int(v.Usage.OutputTokens)}
				select {
				case out <- providers.StreamChunk{FinishReason: finish, Usage: &usage}:
				case <-ctx.Done():
					return
				}
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

// ProviderError wraps a non-2xx Anthropic response.
type ProviderError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("anthropic: status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus implements providers.StatusCoder.
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func toProviderError(err error) error {
	var sdkErr *anthropic.Error
	if errors.As(err, &sdkErr) {
		return &ProviderError{StatusCode: sdkErr.StatusCode, Message: sdkErr.Error(), Type: "anthropic_error"}
	}
	return err
}
