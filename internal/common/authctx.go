package common

import "context"

type ctxKey string

const (
	consultantIDKey ctxKey = "auth/consultant-id"
	authMethodKey   ctxKey = "auth/method"
	authSlotKey     ctxKey = "auth/slot"
)

// Authentication methods recorded on the request context.
const (
	AuthMethodBearer = "bearer"
	AuthMethodAPIKey = "api_key"
)

type authSlot struct {
	id     string
	method string
}

// WithAuthSlot prepares ctx so that an authentication performed further down
// the handler chain is visible to middleware holding this context.
func WithAuthSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, authSlotKey, &authSlot{})
}

// WithConsultantID stores the authenticated consultant and the method used
// to authenticate on the provided context.
func WithConsultantID(ctx context.Context, id, method string) context.Context {
	if slot, ok := ctx.Value(authSlotKey).(*authSlot); ok {
		slot.id, slot.method = id, method
	}
	ctx = context.WithValue(ctx, consultantIDKey, id)
	return context.WithValue(ctx, authMethodKey, method)
}

// ConsultantID extracts the authenticated consultant identifier from the context if present.
func ConsultantID(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(consultantIDKey).(string); ok && id != "" {
		return id, true
	}
	if slot, ok := ctx.Value(authSlotKey).(*authSlot); ok && slot.id != "" {
		return slot.id, true
	}
	return "", false
}

// AuthMethod reports how the request was authenticated.
func AuthMethod(ctx context.Context) string {
	if m, ok := ctx.Value(authMethodKey).(string); ok {
		return m
	}
	if slot, ok := ctx.Value(authSlotKey).(*authSlot); ok {
		return slot.method
	}
	return ""
}
