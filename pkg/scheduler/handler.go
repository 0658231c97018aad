package scheduler

import "context"

// Handler receives each trigger exactly once when it fires.
type Handler interface {
	Handle(ctx context.Context, t Trigger) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, t Trigger) error

func (f HandlerFunc) Handle(ctx context.Context, t Trigger) error {
	return f(ctx, t)
}
