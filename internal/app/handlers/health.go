package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/version"
)

type upstreamHealth struct {
	URL         string   `json:"url"`
	Active      bool     `json:"active"`
	Reachable   bool     `json:"reachable"`
	LatencyMs   int64    `json:"latencyMs"`
	LastAttempt string   `json:"lastAttempt,omitempty"`
	GroupTypes  []string `json:"groupTypes"`
	Error       string   `json:"error,omitempty"`
}

// HandleHealth reports bridge liveness: 200 when at least one upstream is
// active, 503 otherwise. Each upstream also gets a live reachability ping so
// the response shows current network truth, not just the last probe round.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	states := h.registry.Snapshot()
	owned := ownedGroupTypes(h.view.Current())
	results := make([]upstreamHealth, len(states))

	var wg sync.WaitGroup
	for i, state := range states {
		wg.Add(1)
		go func(i int, state *domain.UpstreamState) {
			defer wg.Done()

			latency, err := h.prober.Ping(r.Context(), state.Upstream, h.cfg.Lifecycle.ProbeTimeout)
			result := upstreamHealth{
				URL:        state.Upstream.URL,
				Active:     state.Active,
				Reachable:  err == nil,
				LatencyMs:  latency.Milliseconds(),
				GroupTypes: owned[state.Upstream.URL],
			}
			if result.GroupTypes == nil {
				result.GroupTypes = []string{}
			}
			if !state.LastAttempt.IsZero() {
				result.LastAttempt = state.LastAttempt.UTC().Format(time.RFC3339)
			}
			if err != nil {
				result.Error = err.Error()
			}
			results[i] = result
		}(i, state)
	}
	wg.Wait()

	payload := map[string]any{
		"status":    "healthy",
		"upstreams": results,
	}

	status := http.StatusOK
	if h.registry.ActiveCount() == 0 {
		status = http.StatusServiceUnavailable
		payload["status"] = "unhealthy"
		payload["error"] = domain.ErrNoActiveUpstreams.Error()
	}

	h.writeJSON(w, status, payload)
}

// HandleStatus serves the full operational picture: topology, per-upstream
// probe state and request counters.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	view := h.view.Current()

	routing := make(map[string]string, len(view.Routing))
	for groupType, upstream := range view.Routing {
		routing[groupType] = upstream.URL
	}

	states := h.registry.Snapshot()
	upstreams := make([]map[string]any, 0, len(states))
	for _, state := range states {
		entry := map[string]any{
			"url":                 state.Upstream.URL,
			"active":              state.Active,
			"consecutiveFailures": state.ConsecutiveFailures,
		}
		if !state.LastAttempt.IsZero() {
			entry["lastAttempt"] = state.LastAttempt.UTC().Format(time.RFC3339)
		}
		if !state.NextRetry.IsZero() {
			entry["nextRetry"] = state.NextRetry.UTC().Format(time.RFC3339)
		}
		if state.LastError != "" {
			entry["lastError"] = state.LastError
		}
		upstreams = append(upstreams, entry)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":        version.Name,
		"version":     version.Version,
		"startedAt":   view.StartedAt,
		"uptime":      time.Since(h.startTime).Round(time.Second).String(),
		"epoch":       view.Epoch,
		"specversion": h.cfg.Bridge.SpecVersion,
		"model":       view.Model,
		"groupTypes":  routing,
		"upstreams":   upstreams,
		"stats":       h.stats.GetSnapshot(),
	})
}

// HandleVersion serves build identity.
func (h *Handlers) HandleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"name":    version.Name,
		"short":   version.ShortName,
		"version": version.Version,
		"commit":  version.Commit,
		"built":   version.Date,
	})
}
