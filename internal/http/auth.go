package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finwise/internal/core"
	"finwise/internal/log"
)

var errForbidden = errors.New("forbidden")

type sessionKey struct{}

// SessionFrom returns the caller's session stored by RequireSession.
func SessionFrom(ctx context.Context) (core.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(core.Session)
	return s, ok
}

func withSession(ctx context.Context, s core.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// RequireSession rejects requests without a validly signed, unexpired
// bearer token.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.verifier.Session(bearerToken(r), s.now())
		if err != nil {
			s.logger.DebugContext(r.Context(), "Rejected request without valid session",
				log.FieldPath, r.URL.Path,
				log.FieldError, err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="finwise"`)
			ErrorResponse(http.StatusUnauthorized, "unauthorized").Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// RequireAdmin must run after RequireSession.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok || !sess.IsAdmin() {
			s.writeError(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userKey is the rate limiting key: the session subject when known, the
// client address otherwise.
func (s *Server) userKey(r *http.Request) string {
	if sess, ok := SessionFrom(r.Context()); ok {
		return "user:" + sess.Subject
	}
	return "ip:" + s.clientIP(r)
}
