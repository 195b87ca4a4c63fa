package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxTenantID
	ctxRole
)

// WithIdentity attaches a verified caller identity to the context. Only the
// access-token middleware should call this.
func WithIdentity(ctx context.Context, userID, tenantID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxTenantID, tenantID)
	return context.WithValue(ctx, ctxRole, role)
}

func fromContext(ctx context.Context, key ctxKey, name string) (string, error) {
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New(name + " not in context")
}

func UserID(ctx context.Context) (string, error) {
	return fromContext(ctx, ctxUserID, "user_id")
}

func TenantID(ctx context.Context) (string, error) {
	return fromContext(ctx, ctxTenantID, "tenant_id")
}

func Role(ctx context.Context) (string, error) {
	return fromContext(ctx, ctxRole, "role")
}
