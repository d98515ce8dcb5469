// Package context carries log correlation values through request and job contexts.
package context

import "context"

type requestIDKey struct{}
type restaurantIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func WithRestaurantID(ctx context.Context, restaurantID string) context.Context {
	if restaurantID == "" {
		return ctx
	}
	return context.WithValue(ctx, restaurantIDKey{}, restaurantID)
}

func RestaurantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(restaurantIDKey{}).(string)
	return v
}

// WithActor records who triggered the work: "system"/"scheduler", "admin"/token, "public"/ip.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{kind: actorType, id: actorID})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a.kind, a.id
}
