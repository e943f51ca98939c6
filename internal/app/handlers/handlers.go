// Package handlers implements the bridge's own endpoints: the consolidated
// registry document, model and capabilities views, upstream listings and
// operational health.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/xregistry/bridge/internal/adapter/stats"
	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/core/ports"
	"github.com/xregistry/bridge/internal/logger"
	"github.com/xregistry/bridge/internal/util"
)

// Handlers serves every bridge-owned route. Group-type traffic never lands
// here; the router sends it straight to the proxy.
type Handlers struct {
	cfg      *config.Config
	view     ports.ViewProvider
	registry ports.UpstreamRegistry
	prober   ports.Prober
	stats    *stats.Collector
	logger   *logger.StyledLogger

	client    *http.Client
	startTime time.Time
}

func New(cfg *config.Config, view ports.ViewProvider, registry ports.UpstreamRegistry,
	prober ports.Prober, collector *stats.Collector, lgr *logger.StyledLogger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		view:     view,
		registry: registry,
		prober:   prober,
		stats:    collector,
		logger:   lgr,
		client: &http.Client{
			Timeout: cfg.Lifecycle.ProbeTimeout,
		},
		startTime: time.Now(),
	}
}

// baseURL is the externally visible base for self links, including the API
// path prefix.
func (h *Handlers) baseURL(r *http.Request) string {
	base := util.EffectiveBaseURL(h.cfg.Bridge.BaseURL, r)
	if prefix := h.cfg.Bridge.PathPrefix; prefix != "" && prefix != "/" {
		base += prefix
	}
	return base
}

// ownedGroupTypes maps each upstream URL to the group types it currently
// owns in the consolidated view, in stable order.
func ownedGroupTypes(view *domain.ConsolidatedView) map[string][]string {
	owned := make(map[string][]string)
	for _, groupType := range view.GroupTypes() {
		owner := view.Routing[groupType]
		owned[owner.URL] = append(owned[owner.URL], groupType)
	}
	return owned
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		h.logger.Debug("Failed encoding response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
