package ctxutil

import "context"

type actorKey struct{}

// Actor is the caller identity forwarded by the gateway. Authn happens
// upstream; here it is an opaque label carried into audit rows.
type Actor struct {
	ID   string
	Role string
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func GetActor(ctx context.Context) *Actor {
	val := ctx.Value(actorKey{})
	if a, ok := val.(*Actor); ok {
		return a
	}
	return nil
}
