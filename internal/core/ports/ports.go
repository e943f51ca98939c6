// Package ports defines the interfaces between the bridge core and its
// adapters. Collaborators out of scope for the core (upstream registries,
// asset serving, auth back-ends) are consumed through these.
package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/xregistry/bridge/internal/core/domain"
)

// Prober performs single-shot health and metadata fetches against one
// upstream.
type Prober interface {
	// Probe fetches the upstream root, model and capabilities documents.
	// Success requires all three to return 2xx with parseable JSON; any
	// failure yields an error and no partial result.
	Probe(ctx context.Context, upstream domain.Upstream, rctx *domain.RequestContext) (*domain.ProbeResult, error)

	// Ping issues a single bounded GET against the upstream root, used by
	// the /health endpoint for live reachability checks.
	Ping(ctx context.Context, upstream domain.Upstream, timeout time.Duration) (time.Duration, error)
}

// UpstreamRegistry is the process-wide map of upstream to state. Only the
// lifecycle loop writes; readers always observe complete state snapshots.
type UpstreamRegistry interface {
	// Snapshot returns every upstream state in config order.
	Snapshot() []*domain.UpstreamState
	// Get returns the state for one upstream by URL.
	Get(url string) (*domain.UpstreamState, bool)
	// Update replaces the state for the upstream identified by
	// state.Upstream.URL. Lifecycle loop only.
	Update(state *domain.UpstreamState)
	// ActiveCount returns the number of currently active upstreams.
	ActiveCount() int
	// DueForRetry returns inactive states whose backoff window has elapsed.
	DueForRetry(now time.Time) []*domain.UpstreamState
}

// ViewProvider exposes the current consolidated view. Implementations must
// return a complete, immutable view.
type ViewProvider interface {
	Current() *domain.ConsolidatedView
}

// Consolidator rebuilds the consolidated view from upstream states.
type Consolidator interface {
	ViewProvider
	// Rebuild merges the given states into a new view and publishes it.
	// Returns true when the set of routable group types changed.
	Rebuild(states []*domain.UpstreamState) bool
}

// ProxyService forwards a request for a group type to its owning upstream.
type ProxyService interface {
	ProxyRequest(w http.ResponseWriter, r *http.Request, groupType string, upstream domain.Upstream, rctx *domain.RequestContext)
}

// StatsCollector records request and topology metrics.
type StatsCollector interface {
	RecordRequest(pathClass string, status int, duration time.Duration, bytes int64)
	RecordProxyError(kind string)
	SetActiveUpstreams(n int)
	SetEpoch(epoch int64)
}
