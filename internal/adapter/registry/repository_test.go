package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xregistry/bridge/internal/config"
)

func testServers() []config.ServerEntry {
	return []config.ServerEntry{
		{URL: "http://node.example.com"},
		{URL: "http://java.example.com", APIKey: "sekret"},
		{URL: "http://python.example.com"},
	}
}

func TestSnapshot_PreservesConfigOrder(t *testing.T) {
	repo := NewUpstreamRepository(testServers())

	snapshot := repo.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "http://node.example.com", snapshot[0].Upstream.URL)
	assert.Equal(t, "http://java.example.com", snapshot[1].Upstream.URL)
	assert.Equal(t, "http://python.example.com", snapshot[2].Upstream.URL)
	assert.Equal(t, "sekret", snapshot[1].Upstream.APIKey)

	for _, state := range snapshot {
		assert.False(t, state.Active)
	}
}

func TestUpdateAndActiveCount(t *testing.T) {
	repo := NewUpstreamRepository(testServers())
	assert.Zero(t, repo.ActiveCount())

	state, ok := repo.Get("http://java.example.com")
	require.True(t, ok)

	repo.Update(state.WithSuccess(time.Now(), []byte(`{}`), []byte(`{}`)))
	assert.Equal(t, 1, repo.ActiveCount())

	updated, _ := repo.Get("http://java.example.com")
	assert.True(t, updated.Active)
}

func TestDueForRetry(t *testing.T) {
	repo := NewUpstreamRepository(testServers())
	now := time.Now()

	// active upstreams are never due
	first, _ := repo.Get("http://node.example.com")
	repo.Update(first.WithSuccess(now, []byte(`{}`), []byte(`{}`)))

	// backoff window still open
	second, _ := repo.Get("http://java.example.com")
	repo.Update(second.WithFailure(now, "down", time.Hour))

	// backoff elapsed
	third, _ := repo.Get("http://python.example.com")
	repo.Update(third.WithFailure(now.Add(-2*time.Minute), "down", time.Minute))

	due := repo.DueForRetry(now)
	require.Len(t, due, 1)
	assert.Equal(t, "http://python.example.com", due[0].Upstream.URL)
}

func TestDueForRetry_NeverProbedIsDue(t *testing.T) {
	repo := NewUpstreamRepository(testServers())
	assert.Len(t, repo.DueForRetry(time.Now()), 3)
}
