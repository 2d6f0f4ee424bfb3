package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authenticator admits requests presenting one of the configured API tokens
// either as a bearer token or in the X-API-Token header.
type authenticator struct {
	tokens [][]byte
}

func newAuthenticator(tokens []string) *authenticator {
	a := &authenticator{}
	for _, token := range tokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			a.tokens = append(a.tokens, []byte(trimmed))
		}
	}
	return a
}

// enabled reports whether any token is configured. Without tokens writes
// are open, which config validation only allows in the dev environment.
func (a *authenticator) enabled() bool { return len(a.tokens) > 0 }

func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		token := presentedToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}
		if !a.allowed(token) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid api token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *authenticator) allowed(token string) bool {
	presented := []byte(token)
	for _, candidate := range a.tokens {
		if subtle.ConstantTimeCompare(presented, candidate) == 1 {
			return true
		}
	}
	return false
}

func presentedToken(r *http.Request) string {
	if token := parseBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}

func parseBearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(strings.TrimSpace(scheme), "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
