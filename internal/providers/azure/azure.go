package azure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

// Client calls an Azure OpenAI resource's deployments API. Unlike
// OpenAI's own client, the model never travels in the body: the caller
// (C6, via the deployment's provider_model_override) decides which
// deployment name to address, and that name becomes a URL segment.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	client     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New constructs a Client for one Connection's Azure resource endpoint.
// apiVersion is the connection's configured api-version, e.g.
// "2024-02-01" or "2024-10-21".
func New(endpoint, apiKey, apiVersion string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "azure" }

func (c *Client) HealthCheck(ctx context.Context) error {
	u := fmt.Sprintf("%s/openai/models?api-version=%s", c.endpoint, url.QueryEscape(c.apiVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("azure: build health check request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("azure: health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("azure: health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) deploymentsURL(deployment, op string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.endpoint, url.PathEscape(deployment), op, url.QueryEscape(c.apiVersion))
}

func (c *Client) ChatCompletion(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	t := TransformChatRequest(req)
	body, err := json.Marshal(t.Result)
	if err != nil {
		return nil, fmt.Errorf("azure: marshal chat request: %w", err)
	}

	httpResp, err := c.post(ctx, c.deploymentsURL(t.Loss.Model, "chat/completions"), body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if err := parseError(httpResp); err != nil {
		return nil, err
	}

	var out ChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("azure: decode chat response: %w", err)
	}
	canonical, err := TransformChatResponse(out, t.Loss.Model)
	if err != nil {
		return nil, err
	}
	return &canonical, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
}

func (c *Client) ChatCompletionStream(ctx context.Context, req providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	req.Stream = true
	t := TransformChatRequest(req)
	body, err := json.Marshal(t.Result)
	if err != nil {
		return nil, fmt.Errorf("azure: marshal chat request: %w", err)
	}

	httpResp, err := c.post(ctx, c.deploymentsURL(t.Loss.Model, "chat/completions"), body)
	if err != nil {
		return nil, err
	}

	if err := parseError(httpResp); err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	out := make(chan providers.StreamChunk)
	go func() {
		defer close(out)
		defer httpResp.Body.Close()

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				select {
				case out <- providers.StreamChunk{Err: fmt.Errorf("azure: decode stream chunk: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			ch := chunk.Choices[0]
			raw := ""
			if ch.FinishReason != nil {
				raw = *ch.FinishReason
			}
			finish, err := providers.ParseFinishReason(raw)
			if err != nil {
				select {
				case out <- providers.StreamChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			var usage *providers.Usage
			if chunk.Usage != nil {
				usage = &providers.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
			}
			select {
			case out <- providers.StreamChunk{
				Delta:        providers.Message{Role: ch.Delta.Role, Content: ch.Delta.Content},
				FinishReason: finish,
				Usage:        usage,
			}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- providers.StreamChunk{Err: fmt.Errorf("azure: read stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (c *Client) Embed(ctx context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	t := TransformEmbeddingRequest(req)
	body, err := json.Marshal(t.Result)
	if err != nil {
		return nil, fmt.Errorf("azure: marshal embedding request: %w", err)
	}

	httpResp, err := c.post(ctx, c.deploymentsURL(t.Loss.Model, "embeddings"), body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if err := parseError(httpResp); err != nil {
		return nil, err
	}

	var out EmbeddingResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("azure: decode embedding response: %w", err)
	}
	canonical := TransformEmbeddingResponse(out, t.Loss.Model)
	return &canonical, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("azure: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: request: %w", err)
	}
	return resp, nil
}

// ProviderError wraps a non-2xx Azure response.
type ProviderError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("azure: status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus implements providers.StatusCoder.
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

type apiErrEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func parseError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	var env apiErrEnvelope
	_ = json.Unmarshal(raw, &env)

	msg := env.Error.Message
	if msg == "" {
		msg = string(raw)
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: msg, Code: env.Error.Code}
}
