// Package auth implements the static bearer-token check shared by the HTTP
// endpoints.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Tokens is a set of accepted bearer tokens. An empty set disables auth.
type Tokens struct {
	allowed [][]byte
}

// NewTokens normalizes and deduplicates tokens.
func NewTokens(tokens []string) *Tokens {
	seen := map[string]struct{}{}
	t := &Tokens{}
	for _, raw := range tokens {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		t.allowed = append(t.allowed, []byte(tok))
	}
	return t
}

// Enabled reports whether any token is configured.
func (t *Tokens) Enabled() bool {
	return t != nil && len(t.allowed) > 0
}

// Allowed compares got against every token in constant time.
func (t *Tokens) Allowed(got string) bool {
	if got == "" || t == nil {
		return false
	}
	gb := []byte(got)
	ok := false
	for _, allowed := range t.allowed {
		if subtle.ConstantTimeCompare(gb, allowed) == 1 {
			ok = true
		}
	}
	return ok
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Require wraps next with bearer auth when tokens are configured. With
// allowQuery set, a ?token= parameter is accepted too, for EventSource
// clients that cannot set headers.
func (t *Tokens) Require(realm string, allowQuery bool, next http.Handler) http.Handler {
	if !t.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowQuery {
			if q := strings.TrimSpace(r.URL.Query().Get("token")); q != "" && t.Allowed(q) {
				next.ServeHTTP(w, r)
				return
			}
		}
		if !t.Allowed(BearerToken(r)) {
			Unauthorized(w, realm)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Unauthorized writes a 401 with a bearer challenge.
func Unauthorized(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`", error="invalid_token"`)
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
