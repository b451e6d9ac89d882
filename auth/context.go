package auth

import (
	"context"
	"strings"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// WithClaims injects the user identity for downstream layers.
func WithClaims(ctx context.Context, claims *CustomClaims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, RolesKey, claims.Roles)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// BearerToken strips the "Bearer " scheme from an authorization value.
func BearerToken(value string) (string, bool) {
	token, found := strings.CutPrefix(value, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
