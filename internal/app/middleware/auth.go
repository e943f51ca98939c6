package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/logger"
)

// exemptPaths are reachable without credentials so orchestrators can probe
// the bridge.
var exemptPaths = map[string]struct{}{
	"/health": {},
	"/status": {},
}

// Auth guards every route with either a shared bearer key or a
// platform-injected principal carrying one of the required group claims.
// With neither configured the bridge is open. Preflight requests and
// localhost callers bypass auth entirely.
func Auth(cfg config.BridgeConfig, lgr *logger.StyledLogger) func(http.Handler) http.Handler {
	enabled := cfg.APIKey != "" || len(cfg.RequiredGroups) > 0

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				writePreflight(w)
				return
			}

			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			if _, exempt := exemptPaths[r.URL.Path]; exempt || isLocalhost(r.Host) {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.APIKey != "" && bearerMatches(r, cfg.APIKey) {
				next.ServeHTTP(w, r)
				return
			}

			if len(cfg.RequiredGroups) > 0 {
				principal, err := principalFromHeader(r, cfg.PrincipalHeader)
				if err == nil && principal.HasAnyGroup(cfg.RequiredGroups) {
					GetRequestContext(r).Principal = principal
					next.ServeHTTP(w, r)
					return
				}

				if err == nil {
					lgr.Warn("Principal lacks required group claim",
						"user", principal.UserID, "path", r.URL.Path)
					writeAuthError(w, http.StatusUnauthorized, "principal lacks a required group claim")
					return
				}
			}

			writeAuthError(w, http.StatusUnauthorized, "missing or invalid credentials")
		})
	}
}

func bearerMatches(r *http.Request, apiKey string) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) == 1
}

func principalFromHeader(r *http.Request, headerName string) (*domain.Principal, error) {
	encoded := r.Header.Get(headerName)
	if encoded == "" {
		return nil, domain.ErrNoPrincipal
	}
	return domain.DecodePrincipal(encoded)
}

// isLocalhost reports whether the request arrived on a loopback host.
// Sidecar and same-pod callers skip auth.
func isLocalhost(host string) bool {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}

	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

func writePreflight(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusOK)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
