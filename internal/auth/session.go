package auth

import "context"

// SessionContext is the verified identity handed to the core by the auth layer.
type SessionContext struct {
	UserID uint
	Admin  bool
}

// IsUser reports whether the session belongs to a registered user.
func (s SessionContext) IsUser() bool {
	return s.UserID != 0
}

type contextKey string

const sessionKey contextKey = "authSession"

// WithSession stores the session in ctx.
func WithSession(ctx context.Context, s SessionContext) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext retrieves the authenticated session from context.
func SessionFromContext(ctx context.Context) (SessionContext, bool) {
	if ctx == nil {
		return SessionContext{}, false
	}
	s, ok := ctx.Value(sessionKey).(SessionContext)
	return s, ok
}
