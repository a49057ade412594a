package api

import (
	"net/url"
	"regexp"
	"strings"
)

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// IsAbsolute reports whether path is a full http(s) URL.
func IsAbsolute(path string) bool {
	return absoluteURL.MatchString(path)
}

// NormalizePath rewrites a caller-supplied path relative to baseURL.
//
// When baseURL already ends in /api, a leading "api/" segment in path is
// dropped so the prefix never appears twice. Leading slashes are removed.
// Absolute URLs are returned untouched, and the query string and
// fragment are carried over verbatim.
func NormalizePath(baseURL, path string) string {
	if path == "" || IsAbsolute(path) {
		return path
	}

	beforeHash, hash, hasHash := strings.Cut(path, "#")
	p, query, hasQuery := strings.Cut(beforeHash, "?")

	p = strings.TrimLeft(p, "/")
	if hasAPISuffix(baseURL) {
		if p == "api" {
			p = ""
		}
		p = strings.TrimPrefix(p, "api/")
	}

	if hasQuery {
		p += "?" + query
	}
	if hasHash {
		p += "#" + hash
	}
	return p
}

// ResolveURL joins a normalized path onto baseURL.
func ResolveURL(baseURL, path string) string {
	normalized := NormalizePath(baseURL, path)
	if IsAbsolute(normalized) {
		return normalized
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(normalized, "/")
}

func hasAPISuffix(baseURL string) bool {
	return strings.HasSuffix(strings.TrimRight(baseURL, "/"), "/api")
}

// appendQuery adds params to u's raw query without re-encoding what is
// already there.
func appendQuery(u *url.URL, params url.Values) {
	if len(params) == 0 {
		return
	}
	encoded := params.Encode()
	if u.RawQuery == "" {
		u.RawQuery = encoded
		return
	}
	u.RawQuery += "&" + encoded
}
