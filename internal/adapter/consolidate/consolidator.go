// Package consolidate merges per-upstream model and capabilities documents
// into the single view the bridge serves, and derives the routing table
// that decides which upstream owns each group type.
package consolidate

import (
	"encoding/json"
	"sync/atomic"

	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/logger"
)

// Service rebuilds the consolidated view from upstream state snapshots and
// publishes it with an atomic pointer swap. Readers always see a complete
// view; the epoch bumps only when the set of routable group types changes.
type Service struct {
	view      atomic.Pointer[domain.ConsolidatedView]
	reserved  map[string]struct{}
	startedAt string
	logger    *logger.StyledLogger
}

// New creates a consolidator. reservedPaths are first path segments owned by
// the bridge itself; a group type colliding with one is never routed.
func New(reservedPaths []string, startedAt string, lgr *logger.StyledLogger) *Service {
	reserved := make(map[string]struct{}, len(reservedPaths))
	for _, p := range reservedPaths {
		reserved[p] = struct{}{}
	}

	s := &Service{
		reserved:  reserved,
		startedAt: startedAt,
		logger:    lgr,
	}
	s.view.Store(domain.EmptyView(startedAt))
	return s
}

// Current returns the most recently published view.
func (s *Service) Current() *domain.ConsolidatedView {
	return s.view.Load()
}

// Rebuild merges every active state, in config order, into a new view.
// Group-type collisions resolve last-writer-wins with a warning naming both
// upstreams. Returns true when the routable group-type set changed.
func (s *Service) Rebuild(states []*domain.UpstreamState) bool {
	model := map[string]any{}
	capabilities := map[string]any{}
	groups := map[string]any{}
	routing := map[string]domain.Upstream{}
	var groupOrder []string

	for _, state := range states {
		if !state.Active {
			continue
		}

		modelDoc := decodeObject(state.Model)
		capsDoc := decodeObject(state.Capabilities)

		if upstreamGroups, ok := modelDoc["groups"].(map[string]any); ok {
			for groupType, definition := range upstreamGroups {
				if _, isReserved := s.reserved[groupType]; isReserved {
					err := &domain.ErrReservedGroupType{GroupType: groupType, Upstream: state.Upstream.URL}
					s.logger.ErrorWithUpstream("Refusing to route reserved group type from", state.Upstream.URL,
						"group_type", groupType, "error", err.Error())
					continue
				}

				if previous, exists := routing[groupType]; exists && previous.URL != state.Upstream.URL {
					s.logger.Warn("Group type collision, last upstream in config order wins",
						"group_type", groupType,
						"previous", previous.URL,
						"winner", state.Upstream.URL)
				}

				if _, seen := routing[groupType]; !seen {
					groupOrder = append(groupOrder, groupType)
				}
				routing[groupType] = state.Upstream
				groups[groupType] = definition
			}
		}

		for key, value := range modelDoc {
			if key == "groups" {
				continue
			}
			model[key] = value
		}

		for key, value := range capsDoc {
			capabilities[key] = value
		}
	}

	model["groups"] = groups

	previous := s.view.Load()
	changed := topologyChanged(previous.Routing, routing)

	epoch := previous.Epoch
	if changed {
		epoch++
	}

	next := &domain.ConsolidatedView{
		Model:        model,
		Capabilities: capabilities,
		Routing:      routing,
		GroupOrder:   groupOrder,
		Epoch:        epoch,
		StartedAt:    s.startedAt,
	}
	s.view.Store(next)

	if changed {
		s.logger.InfoWithCount("Consolidated view rebuilt, topology changed", len(routing),
			"epoch", epoch)
	}

	return changed
}

// topologyChanged compares the key sets of two routing tables.
func topologyChanged(old map[string]domain.Upstream, next map[string]domain.Upstream) bool {
	if len(old) != len(next) {
		return true
	}
	for groupType := range next {
		if _, ok := old[groupType]; !ok {
			return true
		}
	}
	return false
}

func decodeObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return map[string]any{}
	}
	return doc
}
