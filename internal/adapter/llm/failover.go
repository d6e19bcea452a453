package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"absensi-ai/internal/domain"
)

var _ domain.LLMProvider = (*FailoverProvider)(nil)

// FailoverProvider wraps a primary provider with fallbacks tried in order.
type FailoverProvider struct {
	primary   domain.LLMProvider
	fallbacks []domain.LLMProvider
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover-capable provider.
func NewFailoverProvider(primary domain.LLMProvider, fallbacks []domain.LLMProvider, logger *slog.Logger) *FailoverProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverProvider{
		primary:   primary,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// Chat tries the primary provider first, then each fallback on failure.
// A fallback keeps its own default model: the requested model name
// belongs to the primary endpoint.
func (f *FailoverProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := f.primary.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("primary llm failed, trying fallbacks",
		"primary", f.primary.Name(), "error", err)

	failures := []string{fmt.Sprintf("%s: %v", f.primary.Name(), err)}
	errs := []error{err}

	fbReq := req
	fbReq.Model = ""
	for _, fb := range f.fallbacks {
		resp, err = fb.Chat(ctx, fbReq)
		if err == nil {
			f.logger.Info("failover succeeded", "provider", fb.Name())
			return resp, nil
		}
		f.logger.Warn("fallback llm failed", "provider", fb.Name(), "error", err)
		failures = append(failures, fmt.Sprintf("%s: %v", fb.Name(), err))
		errs = append(errs, err)
	}

	return nil, &FailoverError{msg: "all providers failed: [" + strings.Join(failures, "; ") + "]", errs: errs}
}

// Name returns a composite name.
func (f *FailoverProvider) Name() string {
	return f.primary.Name() + "+failover"
}

// FailoverError aggregates the failure of every provider. errors.Is
// matches any of the underlying causes.
type FailoverError struct {
	msg  string
	errs []error
}

func (e *FailoverError) Error() string   { return e.msg }
func (e *FailoverError) Unwrap() []error { return e.errs }
