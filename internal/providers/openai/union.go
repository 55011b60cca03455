// Package openai implements the OpenAI provider client, the parsing of
// inbound OpenAI-wire request bodies into the canonical types and, since
// the OpenAI wire format is the proxy's own canonical shape, an identity
// Transformation.
package openai

import "encoding/json"

// ContentPart is one element of the OpenAI "array of parts" message
// content shape: [{"type":"text","text":"..."}, {"type":"image_url",...}].
// Only the text parts contribute to the canonical, flattened Message
// content this package produces. Non-text parts are discarded while
// parsing: no Loss records them, and they reach no upstream request,
// since every upstream body is built from the canonical content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalContent decodes OpenAI's untagged content union — a plain
// string, or an array of ContentPart — into a flattened string, the same
// try-array-then-string order used throughout this codebase for
// embeddings input.
func UnmarshalContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		text := ""
		for _, p := range parts {
			if p.Type == "text" || p.Type == "" {
				text += p.Text
			}
		}
		return text, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

// UnmarshalStop decodes OpenAI's untagged stop union — a string, or an
// array of strings — into a slice.
func UnmarshalStop(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []string{s}, nil
}
