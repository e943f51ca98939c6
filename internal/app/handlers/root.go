package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/xregistry/bridge/internal/adapter/proxy"
	"github.com/xregistry/bridge/internal/app/middleware"
	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/version"
)

const maxInlineBodySize = 32 * 1024 * 1024

// HandleRoot serves the consolidated registry document: identity attributes
// plus a {plural}url and {plural}count pair per routable group type.
// ?specversion must match the bridge's version when present; ?inline expands
// the model, capabilities or a named collection in place.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if requested := r.URL.Query().Get("specversion"); requested != "" && requested != h.cfg.Bridge.SpecVersion {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported specversion %q, this registry speaks %q", requested, h.cfg.Bridge.SpecVersion))
		return
	}

	view := h.view.Current()
	base := h.baseURL(r)

	doc := map[string]any{
		"specversion": h.cfg.Bridge.SpecVersion,
		"registryid":  version.Name,
		"self":        base + "/",
		"xid":         "/",
		"epoch":       view.Epoch,
		"name":        "xRegistry Bridge",
		"description": "Federated read-only view over multiple xRegistry services",
		"createdat":   view.StartedAt,
		"modifiedat":  view.StartedAt,
	}

	for _, groupType := range view.GroupTypes() {
		plural := pluralFor(view, groupType)
		doc[plural+"url"] = base + "/" + groupType
		doc[plural+"count"] = h.groupCount(view, groupType, plural)
	}

	for _, target := range splitInline(r.URL.Query().Get("inline")) {
		doc[target] = h.inlineTarget(r, view, base, target)
	}

	h.writeJSON(w, http.StatusOK, doc)
}

// HandleModel serves the merged model document.
func (h *Handlers) HandleModel(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view.Current().Model)
}

// HandleCapabilities serves the merged capabilities document.
func (h *Handlers) HandleCapabilities(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view.Current().Capabilities)
}

// pluralFor reads the collection plural from the group's model definition,
// defaulting to the group type itself.
func pluralFor(view *domain.ConsolidatedView, groupType string) string {
	groups, ok := view.Model["groups"].(map[string]any)
	if !ok {
		return groupType
	}
	definition, ok := groups[groupType].(map[string]any)
	if !ok {
		return groupType
	}
	if plural, ok := definition["plural"].(string); ok && plural != "" {
		return plural
	}
	return groupType
}

// groupCount resolves the collection count for a group type: the count the
// upstream published under {plural}count, else 1 for well-known group types,
// else 0.
func (h *Handlers) groupCount(view *domain.ConsolidatedView, groupType, plural string) any {
	if count, ok := view.Model[plural+"count"]; ok {
		return count
	}
	if slices.Contains(h.cfg.Bridge.WellKnownGroups, groupType) ||
		slices.Contains(h.cfg.Bridge.WellKnownGroups, plural) {
		return 1
	}
	return 0
}

// inlineTarget resolves one ?inline directive. The model and capabilities
// come from the consolidated view; a collection plural triggers a live fetch
// of /{groupType} from the owning upstream. Any failure degrades to an empty
// object so the rest of the document still renders.
func (h *Handlers) inlineTarget(r *http.Request, view *domain.ConsolidatedView, base, target string) any {
	switch target {
	case "model":
		return view.Model
	case "capabilities":
		return view.Capabilities
	}

	for _, groupType := range view.GroupTypes() {
		if pluralFor(view, groupType) != target {
			continue
		}
		upstream, ok := view.Owner(groupType)
		if !ok {
			break
		}
		return h.fetchCollection(r, upstream, base, groupType)
	}
	return map[string]any{}
}

// fetchCollection pulls a group collection from its upstream and rewrites
// upstream links to bridge links, same as the proxy path would.
func (h *Handlers) fetchCollection(r *http.Request, upstream domain.Upstream, base, groupType string) any {
	rctx := middleware.GetRequestContext(r)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.URL+"/"+groupType, nil)
	if err != nil {
		return map[string]any{}
	}
	if upstream.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+upstream.APIKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(proxy.HeaderCorrelationID, rctx.CorrelationID)
	req.Header.Set(proxy.HeaderTraceParent, rctx.TraceParent)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.WarnWithUpstream("Inline expansion fetch failed for", upstream.URL,
			"collection", groupType, "error", err)
		return map[string]any{}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logger.WarnWithUpstream("Inline expansion got non-2xx from", upstream.URL,
			"collection", groupType, "status", resp.StatusCode)
		return map[string]any{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineBodySize))
	if err != nil {
		return map[string]any{}
	}

	if rewritten, rewriteErr := proxy.RewriteJSON(body, upstream.URL, base); rewriteErr == nil {
		body = rewritten
	}

	var collection any
	if err := json.Unmarshal(body, &collection); err != nil {
		return map[string]any{}
	}
	return collection
}

func splitInline(raw string) []string {
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
