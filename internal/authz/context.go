package authz

import "context"

type actorContextKey struct{}

type decisionContextKey struct{}

// ContextWithActor stores the resolved actor in the request context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor, falling back to Anonymous when no
// authentication collaborator ran.
func ActorFromContext(ctx context.Context) Actor {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok {
		return Anonymous()
	}
	return actor
}

// ContextWithDecision stores a collection-read decision for the handler.
func ContextWithDecision(ctx context.Context, dec Decision) context.Context {
	return context.WithValue(ctx, decisionContextKey{}, dec)
}

// DecisionFromContext extracts the decision placed by the route middleware.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	dec, ok := ctx.Value(decisionContextKey{}).(Decision)
	return dec, ok
}
