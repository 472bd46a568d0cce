package api

import (
	"context"
	"net/http"
	"time"

	"cardhall/internal/auth"
)

// SessionCookieName is the transport-level session identifier.
const SessionCookieName = "session-id"

type contextKey string

const sessionContextKey contextKey = "resolvedSession"

// ContextWithSession stores the resolved session in the provided context.
// The surrounding service resolves the session once per request and threads
// it down; handlers never reach into ambient state for it.
func ContextWithSession(ctx context.Context, session auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext retrieves the resolved session from context if present.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(auth.Session)
	return session, ok
}

// sessionRef returns a nil pointer for anonymous requests, the shape
// auth.Authorize expects.
func sessionRef(ctx context.Context) *auth.Session {
	if session, ok := SessionFromContext(ctx); ok {
		return &session
	}
	return nil
}

// ExtractToken pulls the session token from the request cookie. An absent
// cookie yields the empty string: the request proceeds anonymously.
func ExtractToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	if token == "" {
		return
	}
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
