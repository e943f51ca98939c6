package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/logger"
	"github.com/xregistry/bridge/theme"
)

type noopStats struct{}

func (noopStats) RecordRequest(string, int, time.Duration, int64) {}
func (noopStats) RecordProxyError(string)                         {}
func (noopStats) SetActiveUpstreams(int)                          {}
func (noopStats) SetEpoch(int64)                                  {}

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), theme.Default())
}

func testService(baseURL string) *Service {
	return NewService(config.BridgeConfig{
		BaseURL:       baseURL,
		BaseURLHeader: "x-base-url",
	}, noopStats{}, testLogger())
}

func TestProxyRequest_ForwardsAndRewrites(t *testing.T) {
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"self":"` + "http://" + r.Host + `/noderegistries/n1","xid":"/noderegistries/n1"}`))
	}))
	defer upstream.Close()

	svc := testService("http://bridge.example.com")
	rctx := domain.NewRequestContext("corr-1", "")

	r := httptest.NewRequest("GET", "http://bridge.example.com/noderegistries/n1", nil)
	r.Header.Set("Authorization", "Bearer client-credential")
	w := httptest.NewRecorder()

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL, APIKey: "upstream-key"}, rctx)

	require.Equal(t, http.StatusOK, w.Code)

	// the upstream sees bridge credentials and trace identity, never the
	// client's own Authorization header
	assert.Equal(t, "Bearer upstream-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "http://bridge.example.com", gotHeaders.Get("x-base-url"))
	assert.Equal(t, "corr-1", gotHeaders.Get("x-correlation-id"))
	assert.Equal(t, rctx.TraceParent, gotHeaders.Get("traceparent"))
	assert.Equal(t, rctx.RequestID, gotHeaders.Get("x-request-id"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "http://bridge.example.com/noderegistries/n1", doc["self"])
	assert.Equal(t, "/noderegistries/n1", doc["xid"])

	assert.Equal(t, rctx.RequestID, w.Header().Get(HeaderRequestID))
	assert.Equal(t, upstream.URL, w.Header().Get(HeaderUpstream))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestProxyRequest_UpstreamCORSWins(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "https://app.example.com")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	svc := testService("http://bridge.example.com")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://bridge.example.com/noderegistries", nil)

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL}, domain.NewRequestContext("", ""))

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestProxyRequest_4xxPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such registry"}`))
	}))
	defer upstream.Close()

	svc := testService("http://bridge.example.com")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://bridge.example.com/noderegistries/missing", nil)

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL}, domain.NewRequestContext("", ""))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no such registry")
}

func TestProxyRequest_Upstream5xxBecomesBridge502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html>upstream exploded</html>"))
	}))
	defer upstream.Close()

	svc := testService("http://bridge.example.com")
	rctx := domain.NewRequestContext("corr-5", "")

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://bridge.example.com/noderegistries", nil)

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL}, rctx)

	require.Equal(t, http.StatusBadGateway, w.Code)

	// the upstream's own error page never leaks, the bridge document does
	var doc map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Bad Gateway", doc["error"])
	assert.Equal(t, "noderegistries", doc["groupType"])
	assert.Contains(t, doc["message"], "503")
	assert.Equal(t, "corr-5", doc["correlationId"])
	assert.Equal(t, rctx.TraceID(), doc["traceId"])
}

func TestProxyRequest_BadGatewayOnUnreachableUpstream(t *testing.T) {
	svc := testService("http://bridge.example.com")
	rctx := domain.NewRequestContext("corr-9", "")

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://bridge.example.com/noderegistries", nil)

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: "http://127.0.0.1:1"}, rctx)

	require.Equal(t, http.StatusBadGateway, w.Code)

	var doc map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "Bad Gateway", doc["error"])
	assert.Equal(t, "noderegistries", doc["groupType"])
	assert.Equal(t, "corr-9", doc["correlationId"])
	assert.Equal(t, rctx.TraceID(), doc["traceId"])
}

func TestProxyRequest_RewriteFailureFallsBackToRawBody(t *testing.T) {
	// claims JSON, is not
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`this is not json`))
	}))
	defer upstream.Close()

	svc := testService("http://bridge.example.com")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://bridge.example.com/noderegistries", nil)

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL}, domain.NewRequestContext("", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "this is not json", w.Body.String())
}

func TestProxyRequest_NonJSONStreams(t *testing.T) {
	payload := strings.Repeat("binary-ish payload ", 100)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte(payload))
	}))
	defer upstream.Close()

	svc := testService("http://bridge.example.com")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://bridge.example.com/noderegistries/blob", nil)

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL}, domain.NewRequestContext("", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.String())
}

func TestProxyRequest_ForwardsMethodAndBody(t *testing.T) {
	var gotMethod, gotBody, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotMethod = r.Method
		gotBody = string(body)
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusAccepted)
	}))
	defer upstream.Close()

	svc := testService("http://bridge.example.com")
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "http://bridge.example.com/noderegistries/n1?epoch=3", strings.NewReader(`{"k":"v"}`))

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL}, domain.NewRequestContext("", ""))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, `{"k":"v"}`, gotBody)
	assert.Equal(t, "epoch=3", gotQuery)
}

func TestProxyRequest_StripsAPIPrefix(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	svc := NewService(config.BridgeConfig{
		BaseURL:       "http://bridge.example.com",
		BaseURLHeader: "x-base-url",
		PathPrefix:    "/api/xr",
	}, noopStats{}, testLogger())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://bridge.example.com/api/xr/noderegistries/n1", nil)

	svc.ProxyRequest(w, r, "noderegistries", domain.Upstream{URL: upstream.URL}, domain.NewRequestContext("", ""))

	assert.Equal(t, "/noderegistries/n1", gotPath)
}
