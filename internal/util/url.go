package util

import (
	"net/http"
	"strings"
)

// NormaliseBaseURL strips a trailing slash so rewritten URLs never end up
// with a double slash after the host.
func NormaliseBaseURL(baseURL string) string {
	if len(baseURL) > 1 && strings.HasSuffix(baseURL, "/") {
		return baseURL[:len(baseURL)-1]
	}
	return baseURL
}

// EffectiveBaseURL resolves the URL the outside world uses to reach the
// bridge. Priority: explicit override, then X-Forwarded-* headers set by an
// edge proxy, then the inbound Host header.
func EffectiveBaseURL(override string, r *http.Request) string {
	if override != "" {
		return NormaliseBaseURL(override)
	}

	host := r.Header.Get("X-Forwarded-Host")
	proto := r.Header.Get("X-Forwarded-Proto")

	if host == "" {
		host = r.Host
	}
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	if host == "" {
		return ""
	}
	return proto + "://" + host
}

// StripPathPrefix removes an API prefix from an inbound path, always
// returning a path that starts with "/".
func StripPathPrefix(path, prefix string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if strings.HasPrefix(path, prefix) {
		stripped := path[len(prefix):]
		if stripped == "" || stripped[0] != '/' {
			stripped = "/" + stripped
		}
		return stripped
	}
	return path
}

// FirstPathSegment returns the first segment of a URL path without slashes,
// e.g. "/noderegistries/foo" -> "noderegistries".
func FirstPathSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}
