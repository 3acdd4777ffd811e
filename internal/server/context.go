package server

import "context"

type contextKey struct{ name string }

var (
	userIDKey       = contextKey{"user_id"}
	sessionTokenKey = contextKey{"session_token"}
)

// WithIdentity returns a context carrying the authenticated user id and session token.
func WithIdentity(ctx context.Context, userID, sessionToken string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, sessionTokenKey, sessionToken)
	return ctx
}

// GetUserID returns the user id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// GetSessionToken returns the session token from context and true if set; otherwise "", false.
func GetSessionToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionTokenKey).(string)
	return v, ok
}
