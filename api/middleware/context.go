package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/session"
	pkgauth "github.com/angelmondragon/storefront-backend/pkg/auth"
)

type contextKey string

const (
	ctxIdentity    contextKey = "identity"
	ctxAccessToken contextKey = "access_token"
	ctxSession     contextKey = "session"
)

// IdentityFromContext returns the verified caller, or nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *pkgauth.Identity {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxIdentity).(*pkgauth.Identity); ok {
		return v
	}
	return nil
}

func AccessTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessToken).(string); ok {
		return v
	}
	return ""
}

func SessionFromContext(ctx context.Context) *session.Session {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxSession).(*session.Session); ok {
		return v
	}
	return nil
}

// WithIdentity injects a verified identity into the context.
func WithIdentity(ctx context.Context, identity *pkgauth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// WithSession injects the request's cart session into the context.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, sess)
}
