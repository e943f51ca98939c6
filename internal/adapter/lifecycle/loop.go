// Package lifecycle drives upstream probing: the delayed startup round, the
// periodic retry loop for inactive upstreams, and the consolidation that
// follows every round.
package lifecycle

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/core/ports"
	"github.com/xregistry/bridge/internal/logger"
)

const (
	// maxConcurrentProbes bounds probe fan-out per round.
	maxConcurrentProbes = 8

	// maxBackoffMultiplier caps the per-upstream retry backoff at this many
	// retry intervals.
	maxBackoffMultiplier = 8
)

// Loop owns all writes to the upstream registry. Start runs the initial
// probe round synchronously so callers can bind the listener with a
// populated view, then ticks in the background until the context ends.
type Loop struct {
	cfg          config.LifecycleConfig
	prober       ports.Prober
	registry     ports.UpstreamRegistry
	consolidator ports.Consolidator
	stats        ports.StatsCollector
	logger       *logger.StyledLogger

	wg sync.WaitGroup
}

func NewLoop(cfg config.LifecycleConfig, prober ports.Prober, registry ports.UpstreamRegistry,
	consolidator ports.Consolidator, stats ports.StatsCollector, lgr *logger.StyledLogger) *Loop {
	return &Loop{
		cfg:          cfg,
		prober:       prober,
		registry:     registry,
		consolidator: consolidator,
		stats:        stats,
		logger:       lgr,
	}
}

// Start waits out the startup delay, probes every configured upstream,
// publishes the first consolidated view and then launches the retry ticker.
// It returns once the initial round completes; zero active upstreams is not
// an error, the retry loop keeps trying.
func (l *Loop) Start(ctx context.Context) error {
	if l.cfg.StartupDelay > 0 {
		l.logger.Info("Waiting before first upstream probe", "delay", l.cfg.StartupDelay)
		select {
		case <-time.After(l.cfg.StartupDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	states := l.registry.Snapshot()
	l.logger.InfoWithCount("Probing configured upstreams", len(states))
	l.probeAll(ctx, states)
	l.consolidate()

	if l.registry.ActiveCount() == 0 {
		l.logger.Warn("No upstreams active after startup, continuing to retry",
			"retry_interval", l.cfg.RetryInterval)
	}

	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Wait blocks until the background loop has exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Lifecycle loop stopping")
			return
		case <-ticker.C:
			l.safeTick(ctx)
		}
	}
}

// safeTick runs one retry round. A panic in a tick is logged and swallowed
// so a bad upstream response can never kill the loop.
func (l *Loop) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered from panic in lifecycle tick",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
		}
	}()

	due := l.registry.DueForRetry(time.Now())
	if len(due) == 0 {
		return
	}

	l.logger.Debug("Retrying inactive upstreams", "count", len(due))
	l.probeAll(ctx, due)
	l.consolidate()
}

func (l *Loop) probeAll(ctx context.Context, states []*domain.UpstreamState) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for _, state := range states {
		g.Go(func() error {
			l.probeOne(gctx, state)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Loop) probeOne(ctx context.Context, state *domain.UpstreamState) {
	rctx := domain.NewRequestContext("", "")
	now := time.Now()

	result, err := l.prober.Probe(ctx, state.Upstream, rctx)
	if err != nil {
		next := state.WithFailure(now, err.Error(), l.backoffFor(state.ConsecutiveFailures+1))
		l.registry.Update(next)

		if state.Active {
			l.logger.InfoUpstreamStatus("Upstream transitioned,", state.Upstream.URL, false,
				"error", err.Error())
		} else {
			l.logger.WarnWithUpstream("Probe failed for", state.Upstream.URL,
				"error", err.Error(),
				"consecutive_failures", next.ConsecutiveFailures,
				"next_retry", next.NextRetry.Format(time.RFC3339))
		}
		return
	}

	l.registry.Update(state.WithSuccess(now, result.Model, result.Capabilities))

	if !state.Active {
		l.logger.InfoUpstreamStatus("Upstream transitioned,", state.Upstream.URL, true)
	}
}

// backoffFor doubles the retry interval per consecutive failure, capped.
func (l *Loop) backoffFor(failures int) time.Duration {
	backoff := l.cfg.RetryInterval
	for i := 1; i < failures; i++ {
		backoff *= 2
		if backoff >= l.cfg.RetryInterval*maxBackoffMultiplier {
			return l.cfg.RetryInterval * maxBackoffMultiplier
		}
	}
	return backoff
}

func (l *Loop) consolidate() {
	states := l.registry.Snapshot()
	changed := l.consolidator.Rebuild(states)

	view := l.consolidator.Current()
	l.stats.SetActiveUpstreams(l.registry.ActiveCount())
	l.stats.SetEpoch(view.Epoch)

	if changed {
		l.logger.InfoWithCount("Routing table updated, group types", len(view.Routing),
			"epoch", view.Epoch)
	}
}
