package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"bookreview/internal/auth"
)

// SessionGetter resolves a session ID to a user ID ("" when the session is
// anonymous, missing, or expired).
type SessionGetter interface {
	Get(ctx context.Context, sessionID string) (string, error)
}

type userIDKey struct{}

// RequireAuth is middleware that validates the session cookie and injects
// the authenticated user's ID into the request context. Anonymous requests
// are redirected to the login page with the original path preserved for a
// post-login redirect.
func RequireAuth(sessions SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookie)
			if err != nil {
				redirectToLogin(w, r)
				return
			}

			val, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil || val == "" {
				redirectToLogin(w, r)
				return
			}

			userID, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				redirectToLogin(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}

// WithUserID returns a context carrying the authenticated user's ID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the authenticated user's ID from the request context.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}
