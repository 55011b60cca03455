// Package registry dials the concrete provider client for one
// Connection's provider kind, keeping that switch out of the providers
// package itself to avoid an import cycle (each provider subpackage
// imports providers for the canonical types).
package registry

import (
	"context"
	"fmt"

	"github.com/nulpointcorp/llm-gateway/internal/data"
	"github.com/nulpointcorp/llm-gateway/internal/providers"
	"github.com/nulpointcorp/llm-gateway/internal/providers/anthropic"
	"github.com/nulpointcorp/llm-gateway/internal/providers/azure"
	"github.com/nulpointcorp/llm-gateway/internal/providers/gemini"
	"github.com/nulpointcorp/llm-gateway/internal/providers/openai"
)

// Dial constructs the concrete Provider for one Connection's provider
// kind and decrypted credential. The pipeline (C6) calls this once per
// connection attempt rather than caching a client per Connection row, so
// a credential rotation takes effect on the next request with no
// invalidation step of its own. ctx is only used by providers (Gemini)
// whose SDK client construction itself makes a call.
func Dial(ctx context.Context, c data.Connection, credential string) (providers.Provider, error) {
	switch c.Provider {
	case data.ProviderOpenAI:
		return openai.New(c.EndpointURL, credential), nil
	case data.ProviderAzure:
		return azure.New(c.EndpointURL, credential, c.APIVersion), nil
	case data.ProviderGemini:
		return gemini.New(ctx, c.EndpointURL, credential)
	case data.ProviderAnthropic:
		return anthropic.New(c.EndpointURL, credential), nil
	default:
		return nil, fmt.Errorf("providers: unsupported connection provider kind %q", c.Provider)
	}
}

// DialEmbedding constructs the EmbeddingProvider for connection kinds
// that support it. Anthropic has no embeddings endpoint and returns
// ok=false, mirroring the type-assertion callers must otherwise perform.
func DialEmbedding(ctx context.Context, c data.Connection, credential string) (providers.EmbeddingProvider, bool, error) {
	p, err := Dial(ctx, c, credential)
	if err != nil {
		return nil, false, err
	}
	ep, ok := p.(providers.EmbeddingProvider)
	return ep, ok, nil
}
