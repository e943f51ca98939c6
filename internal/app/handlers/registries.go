package handlers

import (
	"net/http"
	"time"
)

// HandleRegistries lists every configured upstream with its probe state and
// the group types it currently owns in the consolidated view.
func (h *Handlers) HandleRegistries(w http.ResponseWriter, r *http.Request) {
	ownedBy := ownedGroupTypes(h.view.Current())

	states := h.registry.Snapshot()
	registries := make([]map[string]any, 0, len(states))
	for _, state := range states {
		entry := map[string]any{
			"url":        state.Upstream.URL,
			"active":     state.Active,
			"groupTypes": ownedBy[state.Upstream.URL],
		}
		if entry["groupTypes"] == nil {
			entry["groupTypes"] = []string{}
		}
		if !state.LastAttempt.IsZero() {
			entry["lastAttempt"] = state.LastAttempt.UTC().Format(time.RFC3339)
		}
		if state.LastError != "" {
			entry["lastError"] = state.LastError
		}
		registries = append(registries, entry)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(registries),
		"registries": registries,
	})
}
