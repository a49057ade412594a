package api

import (
	"net/http"
	"net/url"
	"testing"
)

func response(final, contentType string) *http.Response {
	u, _ := url.Parse(final)
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     h,
		Request:    &http.Request{URL: u},
	}
}

func TestLooksLikeLoginRedirect(t *testing.T) {
	const requested = "http://h/api/mensajes/"

	tests := []struct {
		name  string
		final string
		want  bool
	}{
		{"no redirect", requested, false},
		{"redirect to django login", "http://h/accounts/login/?next=/api/mensajes/", true},
		{"redirect to spa login", "http://h/login", true},
		{"redirect elsewhere", "http://h/api/mensajes/inbox/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeLoginRedirect(requested, response(tt.final, "application/json")); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsProbablyLoginHTML(t *testing.T) {
	tests := []struct {
		name        string
		final       string
		contentType string
		want        bool
	}{
		{"json from login url", "http://h/accounts/login/", "application/json", false},
		{"html login", "http://h/accounts/login/", "text/html; charset=utf-8", true},
		{"html with next", "http://h/some/page?next=/api/x", "text/html", true},
		{"html elsewhere", "http://h/api/docs/", "text/html", false},
		{"no content type", "http://h/login", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProbablyLoginHTML(response(tt.final, tt.contentType)); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if IsProbablyLoginHTML(nil) {
		t.Error("nil response must not look like a login page")
	}
}
