package domain

// ConsolidatedView is the merged picture of every active upstream: one
// model, one capabilities document and the routing table mapping each group
// type to the upstream that owns it. Views are immutable once published and
// replaced wholesale by the consolidator.
type ConsolidatedView struct {
	// Model is the merged model document. Top-level keys are shallow-merged
	// across active upstreams; the groups submap is the union of every
	// upstream's group types.
	Model map[string]any
	// Capabilities is the shallow union of active upstreams' capabilities.
	Capabilities map[string]any
	// Routing maps group type to the owning upstream.
	Routing map[string]Upstream
	// GroupOrder lists group types in first-seen config order, for stable
	// output.
	GroupOrder []string
	// Epoch increases by one whenever the set of routable group types
	// changes. Zero only before the first consolidation with content.
	Epoch int64
	// StartedAt is the process start time, ISO-8601.
	StartedAt string
}

// Owner returns the upstream owning a group type.
func (v *ConsolidatedView) Owner(groupType string) (Upstream, bool) {
	u, ok := v.Routing[groupType]
	return u, ok
}

// GroupTypes returns the routable group types in stable order.
func (v *ConsolidatedView) GroupTypes() []string {
	out := make([]string, 0, len(v.GroupOrder))
	for _, g := range v.GroupOrder {
		if _, ok := v.Routing[g]; ok {
			out = append(out, g)
		}
	}
	return out
}

// EmptyView returns a view with no routable groups, used before the first
// consolidation so request handlers always have something to read.
func EmptyView(startedAt string) *ConsolidatedView {
	return &ConsolidatedView{
		Model:        map[string]any{},
		Capabilities: map[string]any{},
		Routing:      map[string]Upstream{},
		StartedAt:    startedAt,
	}
}
