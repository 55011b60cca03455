package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/nulpointcorp/llm-gateway/internal/providers"
	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// defaultMaxTokens is used when the canonical request leaves max_tokens
// unset — Anthropic's Messages API requires the field, unlike OpenAI's.
const defaultMaxTokens = 4096

// ChatLoss records the canonical request fields Anthropic's Messages API
// has no equivalent for and so cannot honor at all.
type ChatLoss struct {
	DroppedReasoningEffort      bool
	DroppedVerbosity            bool
	DroppedPromptCacheRetention bool
}

// TransformChatRequest translates the canonical request into the
// Anthropic SDK's MessageNewParams, lifting any system-role message into
// the top-level System field the way Anthropic's wire format requires.
// Client.ChatCompletion calls the equivalent buildParams directly; the
// proxy pipeline does not call this function, so the Loss it reports is
// not recorded anywhere on the request path.
func TransformChatRequest(in providers.ChatRequest) providers.Transformation[anthropic.MessageNewParams, ChatLoss] {
	return providers.Transformation[anthropic.MessageNewParams, ChatLoss]{
		Result: buildParams(in),
		Loss: ChatLoss{
			DroppedReasoningEffort:      in.ReasoningEffort != nil,
			DroppedVerbosity:            in.Verbosity != nil,
			DroppedPromptCacheRetention: in.PromptCacheRetention != nil,
		},
	}
}

// stopReasonFromAnthropic maps Anthropic's stop_reason enum to OpenAI's
// finish_reason. An unrecognized value fails closed rather than handing
// the client a finish_reason outside the documented set.
func stopReasonFromAnthropic(reason string) (providers.FinishReason, error) {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishReasonStop, nil
	case "max_tokens":
		return providers.FinishReasonLength, nil
	case "tool_use":
		return providers.FinishReasonToolCalls, nil
	case "":
		return providers.FinishReasonNone, nil
	default:
		return "", apierr.New(apierr.KindUpstreamMalformed, fmt.Sprintf("anthropic: unrecognized stop_reason %q", reason))
	}
}
