// Package auditcontext carries who/where metadata for contract history rows.
package auditcontext

import (
	"context"
	"strings"
)

type ctxKey int

const (
	actorTypeKey ctxKey = iota
	actorIDKey
	sourceKey
	requestIDKey
	ipAddressKey
	userAgentKey
)

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, actorTypeKey, strings.TrimSpace(actorType))
	return context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
}

func ActorFromContext(ctx context.Context) (string, string) {
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}

// WithSource records the channel a mutation came through (web, admin, scheduler).
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, strings.TrimSpace(source))
}

func SourceFromContext(ctx context.Context) string {
	value, _ := ctx.Value(sourceKey).(string)
	return value
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ipAddressKey).(string)
	return value
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, strings.TrimSpace(ua))
}

func UserAgentFromContext(ctx context.Context) string {
	value, _ := ctx.Value(userAgentKey).(string)
	return value
}
