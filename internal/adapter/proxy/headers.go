package proxy

import (
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/xregistry/bridge/internal/version"
)

const (
	HeaderRequestID = "X-Bridge-Request-ID"
	HeaderUpstream  = "X-Bridge-Upstream"

	HeaderCorrelationID = "x-correlation-id"
	HeaderTraceParent   = "traceparent"
)

var viaHeader = "1.1 " + version.ShortName + "/" + version.Version

// copyRequestHeaders copies inbound headers onto the upstream request,
// dropping hop-by-hop headers (RFC 2616 section 13.5.1) and anything
// carrying client credentials. The bridge presents its own credentials per
// upstream.
func copyRequestHeaders(proxyReq, originalReq *http.Request) {
	proxyReq.Header = make(http.Header)
	for header, values := range originalReq.Header {
		if isHopByHopHeader(header) {
			continue
		}

		normalised := http.CanonicalHeaderKey(header)
		if normalised == "Authorization" ||
			normalised == "Cookie" ||
			normalised == "X-Api-Key" ||
			normalised == "X-Auth-Token" ||
			normalised == "Proxy-Authorization" {
			continue
		}

		proxyReq.Header[header] = values
	}

	if via := originalReq.Header.Get("Via"); via != "" {
		proxyReq.Header.Set("Via", via+", "+viaHeader)
	} else {
		proxyReq.Header.Set("Via", viaHeader)
	}

	updateForwardedHeaders(proxyReq, originalReq)
}

func updateForwardedHeaders(proxyReq, originalReq *http.Request) {
	if forwarded := originalReq.Header.Get("X-Forwarded-For"); forwarded != "" {
		if clientIP := extractClientIP(originalReq); clientIP != "" {
			proxyReq.Header.Set("X-Forwarded-For", forwarded+", "+clientIP)
		} else {
			proxyReq.Header.Set("X-Forwarded-For", forwarded)
		}
	} else if clientIP := extractClientIP(originalReq); clientIP != "" {
		proxyReq.Header.Set("X-Forwarded-For", clientIP)
	}

	if proto := originalReq.Header.Get("X-Forwarded-Proto"); proto == "" {
		if originalReq.TLS != nil {
			proxyReq.Header.Set("X-Forwarded-Proto", "https")
		} else {
			proxyReq.Header.Set("X-Forwarded-Proto", "http")
		}
	}

	if host := originalReq.Header.Get("X-Forwarded-Host"); host == "" && originalReq.Host != "" {
		proxyReq.Header.Set("X-Forwarded-Host", originalReq.Host)
	}
}

func isHopByHopHeader(header string) bool {
	hopByHopHeaders := []string{
		"Connection",
		"Keep-Alive",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"TE",
		"Trailers",
		"Transfer-Encoding",
		"Upgrade",
	}
	return slices.ContainsFunc(hopByHopHeaders, func(h string) bool {
		return strings.EqualFold(h, header)
	})
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// copyResponseHeaders copies upstream response headers to the client,
// minus hop-by-hop headers. Content-Length is skipped too; the caller sets
// it after any body rewrite.
func copyResponseHeaders(w http.ResponseWriter, resp *http.Response) {
	for header, values := range resp.Header {
		if isHopByHopHeader(header) || http.CanonicalHeaderKey(header) == "Content-Length" {
			continue
		}
		w.Header()[header] = values
	}
}

// setCORSIfAbsent adds permissive CORS headers unless the upstream already
// set them.
func setCORSIfAbsent(h http.Header) {
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if h.Get("Access-Control-Allow-Methods") == "" {
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	}
	if h.Get("Access-Control-Allow-Headers") == "" {
		h.Set("Access-Control-Allow-Headers", "*")
	}
	if h.Get("Access-Control-Expose-Headers") == "" {
		h.Set("Access-Control-Expose-Headers", "*")
	}
}
