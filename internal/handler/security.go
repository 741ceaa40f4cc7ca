package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
)

// tokenCookie is the cookie browsers send the session token in.
const tokenCookie = "token"

// Authenticate verifies the bearer token, or the token cookie when no
// Authorization header is present, and stores the caller identity in the
// request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			respondError(w, r, auth.ErrInvalidToken)
			return
		}
		id, err := h.tokens.Verify(token)
		if err != nil {
			respondError(w, r, err)
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role does not grant the given one. It
// must run after Authenticate.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				respondError(w, r, auth.ErrInvalidToken)
				return
			}
			if !id.Role.Allows(role) {
				respondError(w, r, auth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// identity returns the caller stored by Authenticate.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}
