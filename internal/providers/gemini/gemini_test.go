package gemini

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
)

func TestTransformChatRequestLiftsSystemMessageAndMapsRoles(t *testing.T) {
	in := providers.ChatRequest{
		Model: "gemini-1.5-pro",
		Messages: []providers.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}
	contents, cfg, loss := TransformChatRequest(in)
	if loss.Model != "gemini-1.5-pro" {
		t.Fatalf("expected model in loss, got %q", loss.Model)
	}
	if cfg == nil || cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be terse" {
		t.Fatalf("expected system message lifted into SystemInstruction")
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 turn contents, got %d", len(contents))
	}
	if contents[1].Role != genai.RoleModel {
		t.Fatalf("expected assistant mapped to model role, got %q", contents[1].Role)
	}
}

func TestFinishReasonMappingIsExhaustive(t *testing.T) {
	cases := map[genai.FinishReason]providers.FinishReason{
		genai.FinishReasonStop:      providers.FinishReasonStop,
		genai.FinishReasonMaxTokens: providers.FinishReasonLength,
		genai.FinishReasonSafety:    providers.FinishReasonContentFilter,
	}
	for in, want := range cases {
		got, err := finishReasonFromGemini(in)
		if err != nil {
			t.Fatalf("finishReasonFromGemini(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("finishReasonFromGemini(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := finishReasonFromGemini(genai.FinishReason("WEIRD")); err == nil {
		t.Fatalf("expected an unrecognized finishReason to fail closed")
	}
}

func TestTransformChatResponseSubstitutesCanonicalModel(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		ResponseID: "resp-1",
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "hi"}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 2, CandidatesTokenCount: 1},
	}
	canonical, err := TransformChatResponse(resp, "gemini-1.5-pro")
	if err != nil {
		t.Fatalf("TransformChatResponse: %v", err)
	}
	if canonical.Model != "gemini-1.5-pro" {
		t.Fatalf("expected canonical model substituted, got %q", canonical.Model)
	}
	if canonical.Choices[0].FinishReason != "stop" {
		t.Fatalf("expected mapped finish reason, got %q", canonical.Choices[0].FinishReason)
	}
	if canonical.Usage.InputTokens != 2 || canonical.Usage.OutputTokens != 1 {
		t.Fatalf("unexpected usage %+v", canonical.Usage)
	}
}

func TestTransformEmbeddingRequestBuildsOneContentPerInput(t *testing.T) {
	req := providers.EmbeddingRequest{Model: "text-embedding-004"}
	req.Input.Strings = []string{"a", "b"}
	contents, loss := TransformEmbeddingRequest(req)
	if loss.Model != "text-embedding-004" {
		t.Fatalf("expected model carried in loss, got %q", loss.Model)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
}

func TestClientNameIsGemini(t *testing.T) {
	c, err := New(context.Background(), "", "gem-secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Name() != "gemini" {
		t.Fatalf("expected %q, got %q", "gemini", c.Name())
	}
}
