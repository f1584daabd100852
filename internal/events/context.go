package events

import "context"

type actorKey struct{}
type sourceKey struct{}

// ContextWithActor returns a new context carrying the actor label recorded in
// history entries.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext extracts the actor label from the context, or "" if absent.
func ActorFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok {
		return a
	}
	return ""
}

// ContextWithSource tags the context with the component driving a mutation.
func ContextWithSource(ctx context.Context, source EventSource) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the tagged source, or SourceEngine.
func SourceFromContext(ctx context.Context) EventSource {
	if s, ok := ctx.Value(sourceKey{}).(EventSource); ok {
		return s
	}
	return SourceEngine
}
