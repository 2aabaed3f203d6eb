package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"hikfetch/internal/config"
)

const unauthorizedBody = `{"error":"unauthorized"}` + "\n"

// authMiddleware guards the API according to the configured method.
// With "none" every request passes through. With "token" requests must carry
// "Authorization: Bearer <token>". With "basic" they must carry matching
// HTTP basic credentials.
func authMiddleware(settings config.API) func(http.Handler) http.Handler {
	switch settings.AuthMethod {
	case config.AuthToken:
		return bearerAuth(settings.Token)
	case config.AuthBasic:
		return basicAuth(settings.Username, settings.Password)
	default:
		return func(next http.Handler) http.Handler { return next }
	}
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || !equal(strings.TrimPrefix(auth, "Bearer "), token) {
				rejectUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func basicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !equal(user, username) || !equal(pass, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="hikfetch"`)
				rejectUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(unauthorizedBody))
}

func equal(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
