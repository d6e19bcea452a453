package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/domain"
)

type mockProvider struct {
	name     string
	chatFunc func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error)
}

func (m *mockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return m.chatFunc(ctx, req)
}
func (m *mockProvider) Name() string { return m.name }

func answer(content string) func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
		return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: content}}, nil
	}
}

func failWith(err error) func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
		return nil, err
	}
}

func TestFailoverPrimarySuccess(t *testing.T) {
	primary := &mockProvider{name: "primary", chatFunc: answer("dari primary")}
	fallback := &mockProvider{
		name: "fallback",
		chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
			t.Fatal("fallback should not be called")
			return nil, nil
		},
	}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, slog.Default())
	resp, err := fp.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "dari primary", resp.Message.Content)
	assert.Equal(t, "primary+failover", fp.Name())
}

func TestFailoverUsesFallbackWithItsOwnModel(t *testing.T) {
	primary := &mockProvider{name: "primary", chatFunc: failWith(domain.ErrRateLimit)}
	var fbModel string
	fallback := &mockProvider{
		name: "fallback",
		chatFunc: func(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
			fbModel = req.Model
			return &domain.ChatResponse{Message: domain.Message{Content: "dari fallback"}}, nil
		},
	}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, nil)
	resp, err := fp.Chat(context.Background(), domain.ChatRequest{Model: "llama3.1"})
	require.NoError(t, err)
	assert.Equal(t, "dari fallback", resp.Message.Content)
	assert.Empty(t, fbModel)
}

func TestFailoverAllFail(t *testing.T) {
	primary := &mockProvider{name: "primary", chatFunc: failWith(domain.ErrRateLimit)}
	fallback := &mockProvider{name: "fallback", chatFunc: failWith(errors.New("connection refused"))}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, nil)
	_, err := fp.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "primary: rate limit exceeded")
	assert.Contains(t, err.Error(), "fallback: connection refused")
	assert.ErrorIs(t, err, domain.ErrRateLimit)
}

func TestFailoverStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	primary := &mockProvider{name: "primary", chatFunc: failWith(context.Canceled)}
	fallback := &mockProvider{
		name: "fallback",
		chatFunc: func(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
			called = true
			return nil, nil
		},
	}

	fp := NewFailoverProvider(primary, []domain.LLMProvider{fallback}, nil)
	_, err := fp.Chat(ctx, domain.ChatRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
