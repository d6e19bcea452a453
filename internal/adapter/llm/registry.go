package llm

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
)

// Registry holds named model providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
	}
}

// Register adds a provider. A name can only be registered once.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrDuplicate, "provider "+name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider builds a provider from its configuration.
func NewProvider(pc config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "ollama":
		return NewOllamaProvider(pc, logger), nil
	case "openai", "":
		return NewOpenAIProvider(pc, logger), nil
	default:
		return nil, domain.NewDomainError("llm.NewProvider", domain.ErrInvalidInput,
			fmt.Sprintf("unsupported provider type %q", pc.Type))
	}
}

// Build registers every configured provider, wrapping each in a circuit
// breaker when enabled, and returns the default provider with failover
// applied.
func Build(cfg config.LLMConfig, logger *slog.Logger) (*Registry, domain.LLMProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry()

	for _, pc := range cfg.Providers {
		provider, err := NewProvider(pc, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
		if cfg.CircuitBreaker.Enabled {
			provider = NewCircuitBreakerProvider(provider, cfg.CircuitBreaker, logger)
		}
		if err := reg.Register(provider); err != nil {
			return nil, nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	if cfg.CircuitBreaker.Enabled {
		logger.Info("llm circuit breaker enabled",
			"max_failures", cfg.CircuitBreaker.MaxFailures,
			"timeout", cfg.CircuitBreaker.Timeout,
		)
	}

	def, err := reg.Get(cfg.DefaultProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("default llm provider: %w", err)
	}

	if cfg.Failover.Enabled && len(cfg.Failover.Fallbacks) > 0 {
		var fallbacks []domain.LLMProvider
		for _, name := range cfg.Failover.Fallbacks {
			fb, err := reg.Get(name)
			if err != nil {
				return nil, nil, fmt.Errorf("failover provider %s: %w", name, err)
			}
			fallbacks = append(fallbacks, fb)
		}
		def = NewFailoverProvider(def, fallbacks, logger)
		logger.Info("model failover enabled", "fallbacks", cfg.Failover.Fallbacks)
	}

	return reg, def, nil
}

// Unwrap peels decorators until it reaches a concrete provider.
func Unwrap(p domain.LLMProvider) domain.LLMProvider {
	for {
		switch v := p.(type) {
		case *CircuitBreakerProvider:
			p = v.Unwrap()
		case *FailoverProvider:
			p = v.primary
		default:
			return p
		}
	}
}
