package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/tracer"
)

// Execute is the shared pipeline behind every tool: decode params, start a
// span, run the handler and serialize what it returns.
//
// A domain.Problem returned by the handler becomes an ordinary result
// ({"error": "..."}) so the model can read it. Any other error is returned
// as is; the caller decides how to report it.
func Execute[P any](
	ctx context.Context,
	spanName string,
	logger *slog.Logger,
	rawParams json.RawMessage,
	handler func(ctx context.Context, span trace.Span, params P) (any, error),
) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, spanName,
		trace.WithAttributes(tracer.StringAttr("tool.name", spanName)),
	)
	defer span.End()

	p, err := ParseParams[P](rawParams)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	result, err := handler(ctx, span, p)
	if err != nil {
		var problem domain.Problem
		if errors.As(err, &problem) {
			logger.Debug(spanName+" rejected", "problem", problem.Message)
			return formatResult(span, problem)
		}
		tracer.RecordError(span, err)
		logger.Warn(spanName+" failed", "error", err)
		return nil, err
	}

	return formatResult(span, result)
}

// ParseParams decodes raw tool arguments into P. Empty or null arguments
// decode to the zero value.
func ParseParams[P any](rawParams json.RawMessage) (P, error) {
	var p P
	trimmed := bytes.TrimSpace(rawParams)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, nil
	}
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return p, fmt.Errorf("%w: invalid params: %v", domain.ErrInvalidInput, err)
	}
	return p, nil
}

func formatResult(span trace.Span, result any) (*domain.ToolResult, error) {
	if v, ok := result.(*domain.ToolResult); ok {
		tracer.SetOK(span)
		return v, nil
	}
	content, err := MarshalResult(result)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("format result: %w", err)
	}
	tracer.SetOK(span)
	return &domain.ToolResult{Content: content}, nil
}

// MarshalResult serializes an operation result for the model. Non-ASCII
// text is kept and HTML characters are not escaped.
func MarshalResult(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
