package negotiation

import (
	"context"

	"github.com/hunters-code/adol-agents/pkg/logging"
)

// FallbackLLMClient tries a chain of providers in order and returns the first
// successful completion. A turn only degrades to templates when every
// configured provider has failed.
type FallbackLLMClient struct {
	chain  []LLMClient
	logger *logging.Logger
}

// NewFallbackLLMClient builds the chain from a primary and an optional
// fallback provider. A nil fallback leaves the primary alone in the chain.
func NewFallbackLLMClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	chain := []LLMClient{primary}
	if fallback != nil {
		chain = append(chain, fallback)
	}
	return &FallbackLLMClient{chain: chain, logger: logger}
}

// Complete walks the provider chain. The error returned is the last
// provider's, since that was the final attempt.
func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	var lastErr error
	for i, provider := range c.chain {
		resp, err := provider.Complete(ctx, req)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback LLM succeeded after primary failure")
			}
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("LLM provider failed",
			"provider_index", i,
			"providers_remaining", len(c.chain)-i-1,
			"error", err.Error(),
		)
	}
	return LLMResponse{}, lastErr
}
