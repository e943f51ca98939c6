package app

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xregistry/bridge/internal/app/middleware"
	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/util"
)

// routes assembles the middleware chain around the dispatcher. Order
// matters: the prefix strip runs first so auth exemptions and routing see
// canonical paths, then request identity, logging and auth.
func (a *Application) routes() http.Handler {
	var handler http.Handler = http.HandlerFunc(a.dispatch)

	handler = middleware.Auth(a.cfg.Bridge, a.logger)(handler)
	if a.cfg.Server.RequestLogging {
		handler = middleware.RequestLogging(a.logger)(handler)
	}
	handler = middleware.WithRequestContext(handler)
	handler = a.stripAPIPrefix(handler)

	return handler
}

// stripAPIPrefix removes the configured API path prefix before dispatch.
// With a prefix configured, requests outside it don't belong to the bridge.
func (a *Application) stripAPIPrefix(next http.Handler) http.Handler {
	prefix := a.cfg.Bridge.PathPrefix
	if prefix == "" || prefix == "/" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stripped := util.StripPathPrefix(r.URL.Path, prefix)
		if stripped == r.URL.Path {
			http.NotFound(w, r)
			return
		}
		r.URL.Path = stripped
		next.ServeHTTP(w, r)
	})
}

// dispatch routes by first path segment: reserved bridge paths first, then
// the routing table decides which upstream owns the group type. Anything
// unrouted is a 404 with the group type named.
func (a *Application) dispatch(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "":
		a.bridgeOwned(w, r, a.handlers.HandleRoot)
	case "/model":
		a.bridgeOwned(w, r, a.handlers.HandleModel)
	case "/capabilities":
		a.bridgeOwned(w, r, a.handlers.HandleCapabilities)
	case "/registries":
		a.bridgeOwned(w, r, a.handlers.HandleRegistries)
	case "/health":
		a.bridgeOwned(w, r, a.handlers.HandleHealth)
	case "/status":
		a.bridgeOwned(w, r, a.handlers.HandleStatus)
	case "/version":
		a.bridgeOwned(w, r, a.handlers.HandleVersion)
	case "/metrics":
		metricsHandler().ServeHTTP(w, r)
	default:
		a.proxyDispatch(w, r)
	}
}

// bridgeOwned enforces read-only semantics on bridge endpoints.
func (a *Application) bridgeOwned(w http.ResponseWriter, r *http.Request, handler http.HandlerFunc) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		writeJSONError(w, http.StatusMethodNotAllowed, "this endpoint is read-only")
		return
	}
	handler(w, r)
}

func (a *Application) proxyDispatch(w http.ResponseWriter, r *http.Request) {
	groupType := util.FirstPathSegment(r.URL.Path)
	view := a.consolidator.Current()

	upstream, ok := view.Owner(groupType)
	if !ok {
		err := &domain.ErrUnknownGroupType{GroupType: groupType}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":     http.StatusText(http.StatusNotFound),
			"groupType": groupType,
			"message":   fmt.Sprintf("%s, known types: %v", err.Error(), view.GroupTypes()),
		})
		return
	}

	rctx := middleware.GetRequestContext(r)
	a.proxy.ProxyRequest(w, r, groupType, upstream, rctx)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"message":%q}`+"\n", http.StatusText(status), message)
}
