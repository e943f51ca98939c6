package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/logger"
)

const (
	DefaultProbeTimeout = 10 * time.Second

	// MaxProbeBodySize caps how much of a probe response we read; registry
	// metadata documents are small.
	MaxProbeBodySize = 8 * 1024 * 1024

	countKeySuffix = "count"
)

// HTTPProber fetches an upstream's root, model and capabilities documents
// in one shot. All three must be 2xx JSON for the probe to succeed.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
	logger  *logger.StyledLogger
}

func NewHTTPProber(timeout time.Duration, lgr *logger.StyledLogger) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	return &HTTPProber{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		timeout: timeout,
		logger:  lgr,
	}
}

// Probe fetches {url}, {url}/model and {url}/capabilities concurrently.
// Aggregate counts found at the root (keys ending in "count") are folded
// into the model document so the consolidated root view can surface them.
func (p *HTTPProber) Probe(ctx context.Context, upstream domain.Upstream, rctx *domain.RequestContext) (*domain.ProbeResult, error) {
	if rctx == nil {
		rctx = domain.NewRequestContext("", "")
	}

	var root, model, capabilities []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		root, err = p.fetchJSON(gctx, upstream, rctx, "")
		return err
	})
	g.Go(func() (err error) {
		model, err = p.fetchJSON(gctx, upstream, rctx, "/model")
		return err
	})
	g.Go(func() (err error) {
		capabilities, err = p.fetchJSON(gctx, upstream, rctx, "/capabilities")
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	model = foldRootCounts(model, root)

	return &domain.ProbeResult{
		Model:        model,
		Capabilities: capabilities,
		Root:         root,
	}, nil
}

// Ping issues one bounded GET against the upstream root.
func (p *HTTPProber) Ping(ctx context.Context, upstream domain.Upstream, timeout time.Duration) (time.Duration, error) {
	start := time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pingCtx, http.MethodGet, upstream.URL, nil)
	if err != nil {
		return time.Since(start), err
	}
	setProbeHeaders(req, upstream, domain.NewRequestContext("", ""))

	resp, err := p.client.Do(req)
	if err != nil {
		return time.Since(start), err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxProbeBodySize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return time.Since(start), fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

func (p *HTTPProber) fetchJSON(ctx context.Context, upstream domain.Upstream, rctx *domain.RequestContext, path string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := upstream.URL + path

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building probe request for %s: %w", target, err)
	}
	setProbeHeaders(req, upstream, rctx)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxProbeBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading probe response from %s: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("probing %s: status %d", target, resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("probing %s: response is not valid JSON", target)
	}

	return body, nil
}

func setProbeHeaders(req *http.Request, upstream domain.Upstream, rctx *domain.RequestContext) {
	if upstream.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+upstream.APIKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-correlation-id", rctx.CorrelationID)
	req.Header.Set("traceparent", rctx.TraceParent)
}

// foldRootCounts copies every top-level root key ending in "count" into the
// model document. Counts live at the upstream root but the bridge publishes
// them as model attributes.
func foldRootCounts(model, root []byte) []byte {
	gjson.ParseBytes(root).ForEach(func(key, value gjson.Result) bool {
		if !strings.HasSuffix(key.Str, countKeySuffix) {
			return true
		}

		updated, err := sjson.SetRawBytes(model, key.Str, []byte(value.Raw))
		if err == nil {
			model = updated
		}
		return true
	})
	return model
}
