// Package auditcontext carries request provenance used when writing audit
// log entries: the acting principal, request metadata, and the domain
// objects a background job is working on.
package auditcontext

import "context"

type actorKey struct{}
type requestIDKey struct{}
type ipAddressKey struct{}
type userAgentKey struct{}
type registrationIDKey struct{}
type eventIDKey struct{}

type actor struct {
	actorType string
	actorID   string
}

// WithActor records the acting principal (user, api_key, system).
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{actorType: actorType, actorID: actorID})
}

// ActorFromContext returns the acting principal, if any.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.actorType, v.actorID
	}
	return "", ""
}

// WithRequestID records the request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request identifier, if any.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey{})
}

// WithIPAddress records the caller IP address.
func WithIPAddress(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey{}, ip)
}

// IPAddressFromContext returns the caller IP address, if any.
func IPAddressFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ipAddressKey{})
}

// WithUserAgent records the caller user agent.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	if ua == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgentFromContext returns the caller user agent, if any.
func UserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentKey{})
}

// WithRegistrationID records the registration a job or request is acting on.
func WithRegistrationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, registrationIDKey{}, id)
}

// RegistrationIDFromContext returns the registration identifier, if any.
func RegistrationIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, registrationIDKey{})
}

// WithEventID records the event a job or request is acting on.
func WithEventID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventIDFromContext returns the event identifier, if any.
func EventIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, eventIDKey{})
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
