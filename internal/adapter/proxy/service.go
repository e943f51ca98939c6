// Package proxy forwards group-type requests to their owning upstream,
// rewriting upstream self links in JSON responses to point back at the
// bridge.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/core/ports"
	"github.com/xregistry/bridge/internal/logger"
	"github.com/xregistry/bridge/internal/util"
)

const (
	// maxRewriteBodySize caps how large a JSON body we will buffer for link
	// rewriting. Bigger bodies stream through unmodified.
	maxRewriteBodySize = 32 * 1024 * 1024

	streamBufferSize = 64 * 1024

	errorKindConnect    = "connect"
	errorKindUpstream   = "upstream_5xx"
	errorKindRewrite    = "rewrite"
	errorKindDisconnect = "client_disconnect"
	errorKindPanic      = "panic"
)

// Service is the proxy engine. One instance serves all upstreams; requests
// ride the client's context so a disconnect cancels the upstream call.
type Service struct {
	client        *http.Client
	baseURL       string
	baseURLHeader string
	pathPrefix    string
	stats         ports.StatsCollector
	logger        *logger.StyledLogger

	bufferPool sync.Pool
}

func NewService(cfg config.BridgeConfig, stats ports.StatsCollector, lgr *logger.StyledLogger) *Service {
	return &Service{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   15 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			// Redirects pass through to the client untouched.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:       cfg.BaseURL,
		baseURLHeader: cfg.BaseURLHeader,
		pathPrefix:    cfg.PathPrefix,
		stats:         stats,
		logger:        lgr,
		bufferPool: sync.Pool{
			New: func() any {
				buf := make([]byte, streamBufferSize)
				return &buf
			},
		},
	}
}

// ProxyRequest forwards the request to the given upstream and relays the
// response. Upstream 2xx/3xx/4xx pass through as-is; a transport failure or
// an upstream 5xx produces the bridge's own 502 document so the caller sees
// one consistent failure shape with trace identifiers.
func (s *Service) ProxyRequest(w http.ResponseWriter, r *http.Request, groupType string, upstream domain.Upstream, rctx *domain.RequestContext) {
	start := time.Now()
	headersWritten := false

	defer func() {
		if rec := recover(); rec != nil {
			s.stats.RecordProxyError(errorKindPanic)
			s.logger.Error("Recovered from panic while proxying",
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
				"group_type", groupType)

			if !headersWritten {
				s.writeBadGateway(w, groupType, "internal proxy failure", rctx)
			}
		}
	}()

	effectiveBase := s.effectiveBaseURL(r)

	proxyReq, err := s.buildUpstreamRequest(r, upstream, rctx, effectiveBase)
	if err != nil {
		s.stats.RecordProxyError(errorKindConnect)
		s.logger.ErrorWithUpstream("Failed to build upstream request for", upstream.URL, "error", err)
		s.writeBadGateway(w, groupType, "failed to build upstream request", rctx)
		headersWritten = true
		return
	}

	resp, err := s.client.Do(proxyReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(r.Context().Err(), context.Canceled) {
			s.stats.RecordProxyError(errorKindDisconnect)
			s.logger.Debug("Client disconnected during proxy request",
				"upstream", upstream.URL, "path", r.URL.Path)
			return
		}

		s.stats.RecordProxyError(errorKindConnect)
		s.logger.ErrorWithUpstream("Upstream request failed for", upstream.URL,
			"error", err, "group_type", groupType)
		s.writeBadGateway(w, groupType, "upstream unreachable", rctx)
		headersWritten = true
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRewriteBodySize))
		s.stats.RecordProxyError(errorKindUpstream)
		s.logger.WarnWithUpstream("Upstream returned server error from", upstream.URL,
			"status", resp.StatusCode, "group_type", groupType)
		s.writeBadGateway(w, groupType, fmt.Sprintf("upstream returned status %d", resp.StatusCode), rctx)
		headersWritten = true
		s.stats.RecordRequest("proxy", http.StatusBadGateway, time.Since(start), 0)
		return
	}

	copyResponseHeaders(w, resp)
	setCORSIfAbsent(w.Header())
	w.Header().Set(HeaderRequestID, rctx.RequestID)
	w.Header().Set(HeaderUpstream, upstream.URL)
	w.Header().Set("Via", viaHeader)

	written := s.relayBody(w, r, resp, upstream, effectiveBase)
	headersWritten = true

	s.stats.RecordRequest("proxy", resp.StatusCode, time.Since(start), written)
}

// effectiveBaseURL is the externally visible base of the bridge, including
// any API path prefix.
func (s *Service) effectiveBaseURL(r *http.Request) string {
	base := util.EffectiveBaseURL(s.baseURL, r)
	if s.pathPrefix != "" && s.pathPrefix != "/" {
		base += s.pathPrefix
	}
	return base
}

func (s *Service) buildUpstreamRequest(r *http.Request, upstream domain.Upstream, rctx *domain.RequestContext, effectiveBase string) (*http.Request, error) {
	target := upstream.URL + util.StripPathPrefix(r.URL.Path, s.pathPrefix)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	proxyReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}
	proxyReq.ContentLength = r.ContentLength

	copyRequestHeaders(proxyReq, r)

	if upstream.APIKey != "" {
		proxyReq.Header.Set("Authorization", "Bearer "+upstream.APIKey)
	}
	proxyReq.Header.Set(s.baseURLHeader, effectiveBase)
	proxyReq.Header.Set(HeaderCorrelationID, rctx.CorrelationID)
	proxyReq.Header.Set(HeaderTraceParent, rctx.TraceParent)
	proxyReq.Header.Set("x-request-id", rctx.RequestID)

	return proxyReq, nil
}

// relayBody writes the upstream response to the client. JSON bodies are
// buffered and rewritten so upstream self links point at the bridge; a
// rewrite failure falls back to the raw body. Everything else streams.
func (s *Service) relayBody(w http.ResponseWriter, r *http.Request, resp *http.Response, upstream domain.Upstream, effectiveBase string) int64 {
	if isJSONResponse(resp) && resp.ContentLength <= maxRewriteBodySize {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxRewriteBodySize+1))
		if err != nil {
			s.logger.WarnWithUpstream("Failed reading response body from", upstream.URL, "error", err)
			w.WriteHeader(http.StatusBadGateway)
			return 0
		}

		if int64(len(body)) > maxRewriteBodySize {
			// too big to rewrite, relay whole and untouched
			w.WriteHeader(resp.StatusCode)
			n, _ := w.Write(body)
			rest, _ := io.Copy(w, resp.Body)
			return int64(n) + rest
		}

		out := body
		if effectiveBase != "" {
			rewritten, rewriteErr := RewriteJSON(body, upstream.URL, effectiveBase)
			if rewriteErr != nil {
				s.stats.RecordProxyError(errorKindRewrite)
				s.logger.WarnWithUpstream("Link rewrite failed, passing body through for", upstream.URL,
					"error", rewriteErr)
			} else {
				out = rewritten
			}
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(out)))
		w.WriteHeader(resp.StatusCode)
		n, _ := w.Write(out)
		return int64(n)
	}

	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.StatusCode)

	bufPtr := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(bufPtr)

	written, err := s.streamResponse(r.Context(), w, resp.Body, *bufPtr)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Streaming ended early", "error", err, "bytes_written", written)
	}
	return written
}

func (s *Service) streamResponse(ctx context.Context, w http.ResponseWriter, body io.Reader, buffer []byte) (int64, error) {
	var total int64
	flusher, canFlush := w.(http.Flusher)

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := body.Read(buffer)
		if n > 0 {
			written, writeErr := w.Write(buffer[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
			if canFlush {
				flusher.Flush()
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}

// writeBadGateway emits the bridge's 502 document with trace identifiers so
// a failed request can be chased through upstream logs.
func (s *Service) writeBadGateway(w http.ResponseWriter, groupType, message string, rctx *domain.RequestContext) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderRequestID, rctx.RequestID)
	setCORSIfAbsent(w.Header())
	w.WriteHeader(http.StatusBadGateway)

	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":         "Bad Gateway",
		"message":       message,
		"groupType":     groupType,
		"traceId":       rctx.TraceID(),
		"correlationId": rctx.CorrelationID,
	})
}

func isJSONResponse(resp *http.Response) bool {
	contentType := resp.Header.Get("Content-Type")
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "+json")
}
