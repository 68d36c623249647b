package auditcontext

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey     ctxKey = "audit_request_id"
	ipAddressKey     ctxKey = "audit_ip_address"
	userAgentKey     ctxKey = "audit_user_agent"
	actorTypeKey     ctxKey = "audit_actor_type"
	actorIDKey       ctxKey = "audit_actor_id"
	reservationIDKey ctxKey = "audit_reservation_id"
	accountIDKey     ctxKey = "audit_account_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return from(ctx, requestIDKey)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return with(ctx, ipAddressKey, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	return from(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return with(ctx, userAgentKey, userAgent)
}

func UserAgentFromContext(ctx context.Context) string {
	return from(ctx, userAgentKey)
}

// WithActor records who is acting for audit entries written further down the call chain.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = with(ctx, actorTypeKey, actorType)
	return with(ctx, actorIDKey, actorID)
}

func ActorFromContext(ctx context.Context) (string, string) {
	return from(ctx, actorTypeKey), from(ctx, actorIDKey)
}

func WithReservationID(ctx context.Context, reservationID string) context.Context {
	return with(ctx, reservationIDKey, reservationID)
}

func ReservationIDFromContext(ctx context.Context) string {
	return from(ctx, reservationIDKey)
}

// WithAccountID names the credit account an audited action concerns.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return with(ctx, accountIDKey, accountID)
}

func AccountIDFromContext(ctx context.Context) string {
	return from(ctx, accountIDKey)
}

func with(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func from(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
