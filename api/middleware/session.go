package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/internal/session"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SessionHeader carries the opaque cart session id in both directions.
const SessionHeader = "X-Session-Id"

// Session resolves the cart session for the request, creating one when the
// header is absent, and aligns it with the identity verified by Identity.
// A request without a bearer token signs a signed-in session out.
func Session(registry *session.Registry, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := registry.Get(r.Header.Get(SessionHeader))
			w.Header().Set(SessionHeader, sess.ID())

			ctx := WithSession(r.Context(), sess)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sess.ID())
			}
			sess.SetIdentity(ctx, IdentityFromContext(ctx))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
