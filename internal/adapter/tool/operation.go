package tool

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"absensi-ai/internal/domain"
)

// Operation adapts a typed function into a domain.Tool. The parameter
// schema is generated from P.
type Operation[P, R any] struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, p P) (R, error)
	logger      *slog.Logger
}

// NewOperation builds an Operation. It fails only when P cannot be
// reflected into a schema.
func NewOperation[P, R any](
	name, description string,
	fn func(ctx context.Context, p P) (R, error),
	logger *slog.Logger,
) (*Operation[P, R], error) {
	schema, err := GenerateSchema[P]()
	if err != nil {
		return nil, domain.WrapOp("tool.NewOperation "+name, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Operation[P, R]{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
		logger:      logger,
	}, nil
}

func (o *Operation[P, R]) Name() string        { return o.name }
func (o *Operation[P, R]) Description() string { return o.description }

func (o *Operation[P, R]) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        o.name,
		Description: o.description,
		Parameters:  o.schema,
	}
}

func (o *Operation[P, R]) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool."+o.name, o.logger, params,
		func(ctx context.Context, _ trace.Span, p P) (any, error) {
			r, err := o.fn(ctx, p)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	)
}
