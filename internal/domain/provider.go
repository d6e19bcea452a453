package domain

import "context"

// LLMProvider is the interface for any chat-capable model endpoint.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "ollama", "openai").
	Name() string
}

// ModelLister is implemented by providers that can report installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// HealthChecker is implemented by providers with a cheap reachability probe.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}
