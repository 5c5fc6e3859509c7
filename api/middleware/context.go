package middleware

import "context"

type contextKey string

const (
	ctxBuyerID    contextKey = "buyer_id"
	ctxBusinessID contextKey = "business_id"
	ctxRole       contextKey = "actor_role"
)

func BuyerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxBuyerID).(string); ok {
		return v
	}
	return ""
}

func BusinessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxBusinessID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithBuyerID injects the buyer identifier into the context.
func WithBuyerID(ctx context.Context, buyerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBuyerID, buyerID)
}

// WithBusinessID injects the business identifier into the context for downstream handlers.
func WithBusinessID(ctx context.Context, businessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBusinessID, businessID)
}

// WithRole injects the authenticated actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
