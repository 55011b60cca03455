package providers

import (
	"encoding/json"
	"fmt"

	"github.com/nulpointcorp/llm-gateway/pkg/apierr"
)

// FinishReason is OpenAI's closed completion-stop-reason enum. Every
// provider's own stop/finish signal (Gemini's finishReason, Anthropic's
// stop_reason, Azure's echoed finish_reason) is mapped into exactly one
// of these values by the provider package before it reaches the
// canonical Choice/StreamChunk; a value outside the known set fails
// closed rather than being passed through verbatim or dropped.
type FinishReason string

const (
	FinishReasonNone          FinishReason = ""
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonFunctionCall  FinishReason = "function_call"
)

var validFinishReasons = map[FinishReason]bool{
	FinishReasonNone: true, FinishReasonStop: true, FinishReasonLength: true,
	FinishReasonToolCalls: true, FinishReasonContentFilter: true, FinishReasonFunctionCall: true,
}

// ParseFinishReason validates raw against the closed finish_reason set.
// An empty string is valid — mid-stream deltas carry none yet — but
// anything else outside the set is rejected as KindUpstreamMalformed
// instead of passing through unvalidated or silently becoming "stop".
func ParseFinishReason(raw string) (FinishReason, error) {
	fr := FinishReason(raw)
	if !validFinishReasons[fr] {
		return "", apierr.New(apierr.KindUpstreamMalformed, fmt.Sprintf("unrecognized finish_reason %q", raw))
	}
	return fr, nil
}

// ReasoningEffort is OpenAI's o-series/gpt-5 "reasoning_effort" request
// enum.
type ReasoningEffort string

const (
	ReasoningEffortMinimal ReasoningEffort = "minimal"
	ReasoningEffortLow     ReasoningEffort = "low"
	ReasoningEffortMedium  ReasoningEffort = "medium"
	ReasoningEffortHigh    ReasoningEffort = "high"
)

var validReasoningEfforts = map[ReasoningEffort]bool{
	ReasoningEffortMinimal: true, ReasoningEffortLow: true, ReasoningEffortMedium: true, ReasoningEffortHigh: true,
}

// UnmarshalJSON fails deserialization on any value outside the known set
// rather than silently defaulting to a particular effort level.
func (r *ReasoningEffort) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := ReasoningEffort(s)
	if !validReasoningEfforts[v] {
		return fmt.Errorf("providers: unrecognized reasoning_effort %q", s)
	}
	*r = v
	return nil
}

// Verbosity is OpenAI's gpt-5-series "verbosity" request enum.
type Verbosity string

const (
	VerbosityLow    Verbosity = "low"
	VerbosityMedium Verbosity = "medium"
	VerbosityHigh   Verbosity = "high"
)

var validVerbosities = map[Verbosity]bool{VerbosityLow: true, VerbosityMedium: true, VerbosityHigh: true}

// UnmarshalJSON fails deserialization on any value outside the known set.
func (v *Verbosity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	val := Verbosity(s)
	if !validVerbosities[val] {
		return fmt.Errorf("providers: unrecognized verbosity %q", s)
	}
	*v = val
	return nil
}

// PromptCacheRetention is OpenAI's "prompt_cache_retention" request enum.
type PromptCacheRetention string

const (
	PromptCacheRetentionInMemory PromptCacheRetention = "in_memory"
	PromptCacheRetention24h      PromptCacheRetention = "24h"
)

var validPromptCacheRetentions = map[PromptCacheRetention]bool{
	PromptCacheRetentionInMemory: true, PromptCacheRetention24h: true,
}

// UnmarshalJSON fails deserialization on any value outside the known set.
func (p *PromptCacheRetention) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	val := PromptCacheRetention(s)
	if !validPromptCacheRetentions[val] {
		return fmt.Errorf("providers: unrecognized prompt_cache_retention %q", s)
	}
	*p = val
	return nil
}

// ContentFilterSeverity is Azure OpenAI's content-filter result severity,
// carried on a response choice's content_filter_results.
type ContentFilterSeverity string

const (
	ContentFilterSeveritySafe   ContentFilterSeverity = "safe"
	ContentFilterSeverityLow    ContentFilterSeverity = "low"
	ContentFilterSeverityMedium ContentFilterSeverity = "medium"
	ContentFilterSeverityHigh   ContentFilterSeverity = "high"
)

var validContentFilterSeverities = map[ContentFilterSeverity]bool{
	ContentFilterSeveritySafe: true, ContentFilterSeverityLow: true,
	ContentFilterSeverityMedium: true, ContentFilterSeverityHigh: true,
}

// UnmarshalJSON fails deserialization on any value outside the known set.
func (s *ContentFilterSeverity) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	val := ContentFilterSeverity(raw)
	if !validContentFilterSeverities[val] {
		return fmt.Errorf("providers: unrecognized content filter severity %q", raw)
	}
	*s = val
	return nil
}

// ContentFilterResult is one category's content-filter verdict. Only
// Azure populates this today; other providers leave Choice's map nil.
type ContentFilterResult struct {
	Filtered bool                   `json:"filtered"`
	Severity ContentFilterSeverity  `json:"severity"`
}
