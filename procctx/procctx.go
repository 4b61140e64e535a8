// Package procctx carries the current address space through a
// context.Context instead of the ambient global thread-local state the
// source used (a per-goroutine pointer installed with runtime.Setgptr).
// Every operation that used to reach for "the current process" now takes
// a context explicitly, and nothing here panics if it is missing: the
// fault handler treats an absent address space as BAD_ADDRESS, not a bug.
package procctx

import "context"

type ctxKey struct{}

// With returns a context carrying as, the current address-space handle.
// The handle is stored as any so this package never imports vm; vm
// provides its own typed FromContext wrapper to avoid an import cycle.
func With(ctx context.Context, as any) context.Context {
	return context.WithValue(ctx, ctxKey{}, as)
}

// From retrieves whatever address-space handle was installed with With.
func From(ctx context.Context) (any, bool) {
	v := ctx.Value(ctxKey{})
	return v, v != nil
}
