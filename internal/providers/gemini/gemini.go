package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

const providerName = "gemini"

// Client calls the Gemini v1beta generateContent/embedContent API via the
// official GenAI SDK.
type Client struct {
	apiKey   string
	endpoint string
	client   *genai.Client
}

// New constructs a Client for one Connection's Gemini endpoint. ctx is
// used only for the SDK's client construction, not per-request calls.
// endpoint overrides the SDK's default base URL when set.
func New(ctx context.Context, endpoint, apiKey string) (*Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	if endpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}

	sdk, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{apiKey: apiKey, endpoint: endpoint, client: sdk}, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	if err != nil {
		return fmt.Errorf("gemini: health check: %w", toProviderError(err))
	}
	return nil
}

func (c *Client) ChatCompletion(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	contents, cfg, loss := TransformChatRequest(req)

	resp, err := c.client.Models.GenerateContent(ctx, loss.Model, contents, cfg)
	if err != nil {
		return nil, toProviderError(err)
	}

	canonical, err := TransformChatResponse(resp, loss.Model)
	if err != nil {
		return nil, err
	}
	return &canonical, nil
}

func (c *Client) ChatCompletionStream(ctx context.Context, req providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	contents, cfg, loss := TransformChatRequest(req)

	out := make(chan providers.StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range c.client.Models.GenerateContentStream(ctx, loss.Model, contents, cfg) {
			if err != nil {
				select {
				case out <- providers.StreamChunk{Err: toProviderError(err)}:
				case <-ctx.Done():
				}
				return
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}
			c0 := resp.Candidates[0]
			finish, err := finishReasonFromGemini(c0.FinishReason)
			if err != nil {
				select {
				case out <- providers.StreamChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			var usage *providers.Usage
			if resp.UsageMetadata != nil {
				usage = &providers.Usage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}
			select {
			case out <- providers.StreamChunk{
				Delta:        providers.Message{Role: "assistant", Content: candidateText(c0)},
				FinishReason: finish,
				Usage:        usage,
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) Embed(ctx context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	contents, loss := TransformEmbeddingRequest(req)
	if loss.DroppedTokenInput {
		return nil, fmt.Errorf("gemini: embeddings input is a token array, which this connection cannot forward as text")
	}

	resp, err := c.client.Models.EmbedContent(ctx, loss.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", toProviderError(err))
	}

	canonical := TransformEmbeddingResponse(resp, loss.Model)
	return &canonical, nil
}

// ProviderError wraps a Gemini SDK error with the fields the failover
// loop needs to classify it.
type ProviderError struct {
	StatusCode int
	Message    string
	Status     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus implements providers.StatusCoder.
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func toProviderError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{StatusCode: apiErr.Code, Message: apiErr.Message, Status: apiErr.Status}
	}
	return err
}
