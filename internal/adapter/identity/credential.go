package identity

import (
	"net/http"
	"strings"
)

const (
	CookieName = "auth_token"
	QueryParam = "token"
)

// CredentialFromRequest finds the bearer credential of a handshake. The
// Authorization header wins over the cookie, the cookie over the query
// parameter. Browsers cannot set headers on WebSocket upgrades, hence the
// fallbacks.
func CredentialFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return r.URL.Query().Get(QueryParam)
}
