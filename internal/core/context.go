package core

import "context"

type contextKey string

const ctxKeyUser contextKey = "user"

// ContextWithUser stores the authenticated user in ctx.
func ContextWithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// GetUserFromContext extracts the authenticated user from ctx.
func GetUserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(User)
	return u, ok
}
