package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		query  string
		want   string
	}{
		{name: "none", want: ""},
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "non-bearer header ignored", header: "Basic abc", query: "q", want: "q"},
		{name: "cookie", cookie: "c", want: "c"},
		{name: "query", query: "q", want: "q"},
		{name: "header beats cookie", header: "Bearer h", cookie: "c", want: "h"},
		{name: "cookie beats query", cookie: "c", query: "q", want: "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}

			assert.Equal(t, tt.want, CredentialFromRequest(req))
		})
	}
}
