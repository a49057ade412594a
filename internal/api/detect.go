package api

import (
	"net/http"
	"strings"
)

// Login-shaped responses are authentication failures the server did not
// report as 401/403: a redirect that landed on the login page, or an HTML
// page served from a login or redirect URL.

// LooksLikeLoginRedirect reports whether resp was reached through a
// redirect (its final URL differs from requested) and that final URL
// points at a login page.
func LooksLikeLoginRedirect(requested string, resp *http.Response) bool {
	final := finalURL(resp)
	if final == "" || final == requested {
		return false
	}
	return isLoginURL(final)
}

// IsProbablyLoginHTML reports whether resp is an HTML page whose URL
// smells of a login form or a next= redirect.
func IsProbablyLoginHTML(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "text/html") {
		return false
	}
	final := finalURL(resp)
	return isLoginURL(final) || strings.Contains(final, "next=")
}

// IsLoginShaped combines both predicates.
func IsLoginShaped(requested string, resp *http.Response) bool {
	return LooksLikeLoginRedirect(requested, resp) || IsProbablyLoginHTML(resp)
}

func isLoginURL(u string) bool {
	return strings.Contains(u, "/accounts/login/") || strings.Contains(u, "/login")
}

func finalURL(resp *http.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}
