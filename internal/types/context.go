package types

import "context"

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxActorID   ContextKey = "ctx_actor_id"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderActorID   = "X-Actor-ID"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// GetActorID returns the authenticated user (or system actor) performing the
// request, when one is known. Webhook-driven mutations have no actor.
func GetActorID(ctx context.Context) string {
	if actorID, ok := ctx.Value(CtxActorID).(string); ok {
		return actorID
	}
	return ""
}

func SetActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, CtxActorID, actorID)
}
