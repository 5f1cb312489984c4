package logging

import "context"

type ctxAttrsKey struct{}

// ContextWith returns a copy of ctx carrying extra key-value pairs. Every
// record logged through a SlogLogger with that context includes them.
func ContextWith(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev := attrsFrom(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(ctxAttrsKey{}).([]any)
	return v
}

func withCtxAttrs(ctx context.Context, args []any) []any {
	extra := attrsFrom(ctx)
	if len(extra) == 0 {
		return args
	}
	out := make([]any, 0, len(extra)+len(args))
	out = append(out, extra...)
	return append(out, args...)
}
