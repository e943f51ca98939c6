package domain

import (
	"encoding/json"
	"time"
)

// Upstream is one configured backing registry service. Immutable after
// load; identity is the URL.
type Upstream struct {
	// URL is the absolute HTTP(S) base of the upstream, no trailing slash.
	URL string
	// APIKey is an optional bearer token presented to the upstream.
	APIKey string
}

// UpstreamState is the bridge's view of one upstream. One instance exists
// per configured upstream for the life of the process. States are treated as
// immutable snapshots: the lifecycle loop replaces the whole value on every
// transition, readers never see a partial update.
type UpstreamState struct {
	Upstream Upstream

	// Active means the most recent probe succeeded and Model and
	// Capabilities are present.
	Active bool
	// LastAttempt is the time of the most recent probe.
	LastAttempt time.Time
	// ConsecutiveFailures counts failed probes since the last success.
	ConsecutiveFailures int
	// NextRetry is when the retry loop may probe this upstream again.
	// Failures push it out with an exponential backoff, capped.
	NextRetry time.Time

	// Model is the last successfully fetched model document, opaque JSON.
	Model json.RawMessage
	// Capabilities is the last successfully fetched capabilities document.
	Capabilities json.RawMessage
	// LastError holds the most recent failure reason, empty when active.
	LastError string
}

// WithSuccess returns a copy of the state flipped to active with fresh
// documents.
func (s *UpstreamState) WithSuccess(now time.Time, model, capabilities json.RawMessage) *UpstreamState {
	next := *s
	next.Active = true
	next.LastAttempt = now
	next.ConsecutiveFailures = 0
	next.NextRetry = time.Time{}
	next.Model = model
	next.Capabilities = capabilities
	next.LastError = ""
	return &next
}

// WithFailure returns a copy of the state recording a failed probe.
// retryAfter is the backoff window before the next attempt.
func (s *UpstreamState) WithFailure(now time.Time, reason string, retryAfter time.Duration) *UpstreamState {
	next := *s
	next.Active = false
	next.LastAttempt = now
	next.ConsecutiveFailures++
	next.NextRetry = now.Add(retryAfter)
	next.LastError = reason
	return &next
}
