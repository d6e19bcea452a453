package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/tracer"
)

// Diagnostic prefixes returned to the caller in place of an answer.
const (
	MsgModelUnreachable = "❌ Gagal menghubungi model: "
	MsgFinalFailed      = "❌ Gagal mendapatkan response final: "
	MsgInternalError    = "❌ Terjadi kesalahan internal: "
)

// Defaults for the loop.
const (
	DefaultMaxToolRounds    = 1
	DefaultRoundTripTimeout = 120 * time.Second
	DefaultToolTimeout      = 30 * time.Second

	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second
)

// AgentDeps holds injected dependencies for the agent.
type AgentDeps struct {
	LLM              domain.LLMProvider
	Tools            domain.ToolExecutor
	History          *HistoryManager
	Logger           *slog.Logger
	Model            string           // default model, empty = provider default
	MaxToolRounds    int              // dispatch rounds per request, default 1
	RoundTripTimeout time.Duration    // bound on each model call
	ToolTimeout      time.Duration    // bound on each operation call
	MaxRetries       int              // extra attempts for transient model errors
	ErrorClassifier  *ErrorClassifier // optional, nil = never retry
}

// Agent drives one question through the model and the attendance tools.
// It keeps no state between calls and is safe for concurrent use.
type Agent struct {
	deps AgentDeps
}

// NewAgent creates an agent with the given dependencies.
func NewAgent(deps AgentDeps) *Agent {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.History == nil {
		deps.History = NewHistoryManager("", DefaultHistoryLimit)
	}
	if deps.MaxToolRounds <= 0 {
		deps.MaxToolRounds = DefaultMaxToolRounds
	}
	if deps.RoundTripTimeout <= 0 {
		deps.RoundTripTimeout = DefaultRoundTripTimeout
	}
	if deps.ToolTimeout <= 0 {
		deps.ToolTimeout = DefaultToolTimeout
	}
	if deps.MaxRetries > 0 && deps.ErrorClassifier == nil {
		deps.ErrorClassifier = NewErrorClassifier()
	}
	return &Agent{deps: deps}
}

// ToolEventKind distinguishes the two halves of a dispatched call.
type ToolEventKind string

const (
	ToolEventCall   ToolEventKind = "tool_call"
	ToolEventResult ToolEventKind = "tool_result"
)

// ToolEvent reports one dispatched call or its result.
type ToolEvent struct {
	Kind     ToolEventKind
	Call     domain.ToolCall
	Content  string        // result JSON, set on ToolEventResult
	Failed   bool          // the result is an error marker produced by the loop
	Duration time.Duration // set on ToolEventResult
}

// Observer receives tool events in dispatch order. It is called from the
// goroutine running Run and must not block for long.
type Observer func(ToolEvent)

type runOptions struct {
	model    string
	observer Observer
}

// RunOption customizes a single Run.
type RunOption func(*runOptions)

// WithModel overrides the model for one request.
func WithModel(model string) RunOption {
	return func(o *runOptions) { o.model = model }
}

// WithObserver reports every tool call and result of one request.
func WithObserver(obs Observer) RunOption {
	return func(o *runOptions) { o.observer = obs }
}

// Run answers userMessage given the caller's prior transcript. It always
// returns text: failures come back as a diagnostic sentence.
func (a *Agent) Run(ctx context.Context, userMessage string, history []domain.Message, opts ...RunOption) (answer string) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.model == "" {
		ro.model = a.deps.Model
	}

	ctx, span := tracer.StartSpan(ctx, "agent.run",
		trace.WithAttributes(tracer.StringAttr("llm.model", ro.model)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			a.deps.Logger.Error("agent panic", "panic", r, "stack", string(debug.Stack()))
			tracer.RecordError(span, fmt.Errorf("panic: %v", r))
			answer = MsgInternalError + fmt.Sprint(r)
		}
	}()

	msgs := a.deps.History.Build(history, userMessage)
	schemas := a.deps.Tools.Schemas()

	resp, err := a.chat(ctx, domain.ChatRequest{Model: ro.model, Messages: msgs, Tools: schemas})
	if err != nil {
		tracer.RecordError(span, err)
		a.deps.Logger.Warn("model round-trip failed", "stage", "first", "error", err)
		return MsgModelUnreachable + err.Error()
	}

	for round := 1; ; round++ {
		reply := resp.Message
		if len(reply.ToolCalls) == 0 {
			tracer.SetOK(span)
			return reply.Content
		}

		reply.Role = domain.RoleAssistant
		msgs = append(msgs, reply)
		msgs = append(msgs, a.dispatch(ctx, reply.ToolCalls, ro.observer)...)

		req := domain.ChatRequest{Model: ro.model, Messages: msgs}
		offerTools := round < a.deps.MaxToolRounds
		if offerTools {
			req.Tools = schemas
		}

		resp, err = a.chat(ctx, req)
		if err != nil {
			tracer.RecordError(span, err)
			a.deps.Logger.Warn("model round-trip failed", "stage", "final", "round", round, "error", err)
			return MsgFinalFailed + err.Error()
		}
		if !offerTools {
			if n := len(resp.Message.ToolCalls); n > 0 {
				a.deps.Logger.Debug("ignoring tool calls in final reply", "count", n)
			}
			tracer.SetOK(span)
			return resp.Message.Content
		}
	}
}

// dispatch runs calls sequentially, in request order, and returns one
// tool message per call.
func (a *Agent) dispatch(ctx context.Context, calls []domain.ToolCall, obs Observer) []domain.Message {
	out := make([]domain.Message, 0, len(calls))
	for _, call := range calls {
		if obs != nil {
			obs(ToolEvent{Kind: ToolEventCall, Call: call})
		}

		start := time.Now()
		content, failed := a.executeTool(ctx, call)
		elapsed := time.Since(start)

		a.deps.Logger.Info("tool dispatched",
			"tool", call.Name,
			"duration", elapsed,
			"failed", failed,
		)
		if obs != nil {
			obs(ToolEvent{Kind: ToolEventResult, Call: call, Content: content, Failed: failed, Duration: elapsed})
		}

		out = append(out, domain.Message{
			Role:       domain.RoleTool,
			Name:       call.Name,
			Content:    content,
			ToolCallID: call.ID,
			Timestamp:  time.Now(),
		})
	}
	return out
}

// executeTool resolves and runs one call. Every failure is returned as an
// {"error": ...} payload with failed set.
func (a *Agent) executeTool(ctx context.Context, call domain.ToolCall) (content string, failed bool) {
	ctx, span := tracer.StartSpan(ctx, "agent.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	tl, err := a.deps.Tools.Get(call.Name)
	if err != nil {
		tracer.RecordError(span, err)
		a.deps.Logger.Warn("unknown tool requested", "tool", call.Name)
		return errorContent(fmt.Sprintf("Function %s tidak tersedia", call.Name)), true
	}

	result, err := a.runTool(ctx, tl, call)
	if err != nil {
		tracer.RecordError(span, err)
		a.deps.Logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return errorContent(fmt.Sprintf("Error menjalankan %s: %s", call.Name, err.Error())), true
	}
	tracer.SetOK(span)
	if result == nil {
		return "null", false
	}
	return result.Content, false
}

// errorContent renders the {"error": msg} marker handed to the model.
func errorContent(msg string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(domain.Problem{Message: msg}); err != nil {
		return `{"error": "internal error"}`
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

type toolOutcome struct {
	result *domain.ToolResult
	err    error
}

// runTool executes t under the per-operation timeout. A panic inside the
// operation is reported as an error. An operation that ignores its context
// is abandoned when the timeout fires.
func (a *Agent) runTool(ctx context.Context, t domain.Tool, call domain.ToolCall) (*domain.ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.deps.ToolTimeout)
	defer cancel()

	done := make(chan toolOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.deps.Logger.Error("tool panic", "tool", call.Name, "panic", r, "stack", string(debug.Stack()))
				done <- toolOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := t.Execute(ctx, call.Arguments)
		done <- toolOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return nil, fmt.Errorf("%w after %s", domain.ErrTimeout, a.deps.ToolTimeout)
		}
		return out.result, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", domain.ErrTimeout, a.deps.ToolTimeout)
		}
		return nil, ctx.Err()
	}
}

// chat performs one model round-trip, retrying transient failures when a
// classifier is configured. Each attempt runs under RoundTripTimeout.
func (a *Agent) chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= a.deps.MaxRetries; attempt++ {
		resp, err := a.chatOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if a.deps.ErrorClassifier == nil || attempt == a.deps.MaxRetries {
			break
		}
		if !a.deps.ErrorClassifier.Classify(err).Retryable() {
			break
		}

		delay := retryBackoff(attempt)
		a.deps.Logger.Info("retrying model call after error",
			"attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (a *Agent) chatOnce(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.deps.RoundTripTimeout)
	defer cancel()

	ctx, span := tracer.StartSpan(ctx, "agent.llm_call",
		trace.WithAttributes(
			tracer.IntAttr("llm.messages", len(req.Messages)),
			tracer.BoolAttr("llm.with_tools", len(req.Tools) > 0),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := a.deps.LLM.Chat(ctx, req)
	if err == nil && resp == nil {
		err = fmt.Errorf("%w: empty response", domain.ErrProviderError)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w after %s: %v", domain.ErrTimeout, a.deps.RoundTripTimeout, err)
		}
		tracer.RecordError(span, err)
		return nil, err
	}

	a.deps.Logger.Debug("model round-trip",
		"duration", time.Since(start),
		"tools_offered", len(req.Tools),
		"tool_calls", len(resp.Message.ToolCalls),
	)
	tracer.SetOK(span)
	return resp, nil
}

// retryBackoff computes exponential backoff with 0-25% jitter.
func retryBackoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay/4) + 1))
	return delay + jitter
}
