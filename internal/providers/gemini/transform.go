package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// ChatLoss carries the canonical model name, which Gemini selects via the
// URL's models/{model}:generateContent segment the SDK builds internally
// from the model argument, rather than the request body.
type ChatLoss struct {
	Model string
}

func roleToGemini(role string) genai.Role {
	if strings.ToLower(role) == "assistant" {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// TransformChatRequest translates the canonical request into the contents
// slice and generation config the genai SDK's GenerateContent call takes,
// lifting any system-role message into a separate SystemInstruction the
// way Gemini's API requires.
func TransformChatRequest(in providers.ChatRequest) (contents []*genai.Content, cfg *genai.GenerateContentConfig, loss ChatLoss) {
	loss = ChatLoss{Model: in.Model}

	var systemPrompt string
	for _, m := range in.Messages {
		if strings.ToLower(m.Role) == "system" {
			systemPrompt = m.Content
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, roleToGemini(m.Role)))
	}

	if systemPrompt != "" || in.Temperature != nil || in.TopP != nil || in.MaxTokens != nil || len(in.Stop) > 0 {
		cfg = &genai.GenerateContentConfig{}
	}
	if cfg != nil && systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if cfg != nil && in.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*in.Temperature))
	}
	if cfg != nil && in.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*in.TopP))
	}
	if cfg != nil && in.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*in.MaxTokens)
	}
	if cfg != nil && len(in.Stop) > 0 {
		cfg.StopSequences = in.Stop
	}
	return contents, cfg, loss
}

// finishReasonFromGemini maps Gemini's finishReason enum to OpenAI's
// closed set. A Gemini variant with no mapping (OTHER, BLOCKLIST,
// PROHIBITED_CONTENT, SPII, MALFORMED_FUNCTION_CALL, and any future
// addition) fails closed instead of passing the raw Gemini string through
// to the client as a bogus finish_reason.
func finishReasonFromGemini(reason genai.FinishReason) (providers.FinishReason, error) {
	switch reason {
	case genai.FinishReasonStop:
		return providers.FinishReasonStop, nil
	case genai.FinishReasonMaxTokens:
		return providers.FinishReasonLength, nil
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return providers.FinishReasonContentFilter, nil
	case "":
		return providers.FinishReasonNone, nil
	default:
		return "", apierr.New(apierr.KindUpstreamMalformed, fmt.Sprintf("gemini: unrecognized finishReason %q", reason))
	}
}

func candidateText(c *genai.Candidate) string {
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// TransformChatResponse translates a genai GenerateContentResponse back
// to the canonical shape, re-substituting the canonical model name.
func TransformChatResponse(resp *genai.GenerateContentResponse, canonicalModel string) (providers.ChatResponse, error) {
	out := providers.ChatResponse{Model: canonicalModel}
	if resp == nil {
		return out, nil
	}

	out.ID = resp.ResponseID
	if resp.UsageMetadata != nil {
		out.Usage = providers.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	out.Choices = make([]providers.Choice, len(resp.Candidates))
	for i, c := range resp.Candidates {
		finish, err := finishReasonFromGemini(c.FinishReason)
		if err != nil {
			return providers.ChatResponse{}, err
		}
		out.Choices[i] = providers.Choice{
			Index:        i,
			Message:      providers.Message{Role: "assistant", Content: candidateText(c)},
			FinishReason: finish,
		}
	}
	return out, nil
}

// EmbeddingLoss carries the canonical model name the same way chat
// requests lose it. DroppedTokenInput is set when the client sent a
// token-array input ([]int/[][]int) — Gemini's EmbedContent call only
// takes text content, so that variant cannot be forwarded and is dropped
// rather than silently embedding nothing.
type EmbeddingLoss struct {
	Model             string
	DroppedTokenInput bool
}

// TransformEmbeddingRequest translates the canonical embeddings request
// into the genai SDK's batched Content slice — Gemini's EmbedContent call
// accepts every input string in one request, unlike its single-content
// generateContent call.
func TransformEmbeddingRequest(in providers.EmbeddingRequest) (contents []*genai.Content, loss EmbeddingLoss) {
	contents = make([]*genai.Content, len(in.Input.Strings))
	for i, s := range in.Input.Strings {
		contents[i] = genai.NewContentFromText(s, genai.RoleUser)
	}
	loss = EmbeddingLoss{Model: in.Model, DroppedTokenInput: in.Input.Strings == nil && in.Input.Raw != nil}
	return contents, loss
}

// TransformEmbeddingResponse translates a genai EmbedContentResponse back
// to the canonical shape.
func TransformEmbeddingResponse(resp *genai.EmbedContentResponse, canonicalModel string) providers.EmbeddingResponse {
	out := providers.EmbeddingResponse{Model: canonicalModel}
	if resp == nil {
		return out
	}
	out.Data = make([]providers.EmbeddingData, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			continue
		}
		values := make([]float64, len(e.Values))
		for j, v := range e.Values {
			values[j] = float64(v)
		}
		out.Data[i] = providers.EmbeddingData{Index: i, Embedding: values}
	}
	return out
}
