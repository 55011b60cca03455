package azure

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

func TestTransformChatRequestDropsModelIntoLoss(t *testing.T) {
	in := providers.ChatRequest{Model: "gpt-4o", Messages: []providers.Message{{Role: "user", Content: "hi"}}}
	out := TransformChatRequest(in)
	if out.Loss.Model != "gpt-4o" {
		t.Fatalf("expected model carried in Loss, got %q", out.Loss.Model)
	}
	if out.Result.Messages[0].Content != "hi" {
		t.Fatalf("unexpected message content %q", out.Result.Messages[0].Content)
	}
}

func TestTransformChatResponseRestoresCanonicalModel(t *testing.T) {
	wire := ChatResponse{
		ID:      "chatcmpl-1",
		Model:   "gpt-4o-internal-deployment-id",
		Choices: []wireChoice{{Index: 0, Message: wireMessage{Role: "assistant", Content: "hi"}, FinishReason: "stop"}},
		Usage:   wireUsage{PromptTokens: 3, CompletionTokens: 2},
	}
	canonical, err := TransformChatResponse(wire, "gpt-4o")
	if err != nil {
		t.Fatalf("TransformChatResponse: %v", err)
	}
	if canonical.Model != "gpt-4o" {
		t.Fatalf("expected canonical model substituted, got %q", canonical.Model)
	}
	if canonical.Usage.InputTokens != 3 || canonical.Usage.OutputTokens != 2 {
		t.Fatalf("unexpected usage %+v", canonical.Usage)
	}
}

func TestClientChatCompletionUsesDeploymentURLAndAPIKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/openai/deployments/gpt-4o/chat/completions") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-10-21" {
			t.Fatalf("unexpected api-version %q", got)
		}
		if got := r.Header.Get("api-key"); got != "azure-secret" {
			t.Fatalf("unexpected api-key header %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatalf("azure must not send a Bearer Authorization header")
		}
		fmt.Fprint(w, `{"id":"chatcmpl-1","model":"dep-id","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "azure-secret", "2024-10-21")
	resp, err := client.ChatCompletion(context.Background(), providers.ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if resp.Model != "gpt-4o" {
		t.Fatalf("expected canonical model in response, got %q", resp.Model)
	}
}

func TestClientChatCompletionReturnsProviderErrorWithStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded","code":"overloaded"}}`)
	}))
	defer srv.Close()

	client := New(srv.URL, "azure-secret", "2024-10-21")
	_, err := client.ChatCompletion(context.Background(), providers.ChatRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error")
	}
	perr, ok := err.(*ProviderError)
	if !ok {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if perr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", perr.StatusCode)
	}
	if !providers.RetryableStatuses[perr.HTTPStatus()] {
		t.Fatalf("expected 503 to be retryable")
	}
}
