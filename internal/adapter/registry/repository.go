// Package registry holds the process-wide upstream state map. It is built
// once from config and mutated only by the lifecycle loop; request handlers
// read immutable state snapshots.
package registry

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/core/domain"
)

// UpstreamRepository maps upstream URL to its current state. Insertion
// order follows the config file, which decides group-type collision winners.
// States are immutable values; updates swap the whole entry, so a reader
// holding a snapshot never observes a half-written state.
type UpstreamRepository struct {
	states *xsync.Map[string, *domain.UpstreamState]
	order  []string
}

// NewUpstreamRepository seeds one inactive state per configured server.
func NewUpstreamRepository(servers []config.ServerEntry) *UpstreamRepository {
	repo := &UpstreamRepository{
		states: xsync.NewMap[string, *domain.UpstreamState](),
		order:  make([]string, 0, len(servers)),
	}

	for _, server := range servers {
		upstream := domain.Upstream{URL: server.URL, APIKey: server.APIKey}
		repo.states.Store(upstream.URL, &domain.UpstreamState{Upstream: upstream})
		repo.order = append(repo.order, upstream.URL)
	}

	return repo
}

// Snapshot returns every state in config order.
func (r *UpstreamRepository) Snapshot() []*domain.UpstreamState {
	out := make([]*domain.UpstreamState, 0, len(r.order))
	for _, url := range r.order {
		if state, ok := r.states.Load(url); ok {
			out = append(out, state)
		}
	}
	return out
}

// Get returns the state for one upstream by URL.
func (r *UpstreamRepository) Get(url string) (*domain.UpstreamState, bool) {
	return r.states.Load(url)
}

// Update replaces the state for state.Upstream.URL. Single writer: the
// lifecycle loop.
func (r *UpstreamRepository) Update(state *domain.UpstreamState) {
	r.states.Store(state.Upstream.URL, state)
}

// ActiveCount returns the number of currently active upstreams.
func (r *UpstreamRepository) ActiveCount() int {
	count := 0
	for _, state := range r.Snapshot() {
		if state.Active {
			count++
		}
	}
	return count
}

// DueForRetry returns inactive states whose backoff window has elapsed.
func (r *UpstreamRepository) DueForRetry(now time.Time) []*domain.UpstreamState {
	var due []*domain.UpstreamState
	for _, state := range r.Snapshot() {
		if state.Active {
			continue
		}
		if state.NextRetry.IsZero() || !now.Before(state.NextRetry) {
			due = append(due, state)
		}
	}
	return due
}
