package probe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/xregistry/bridge/internal/core/domain"
	"github.com/xregistry/bridge/internal/logger"
	"github.com/xregistry/bridge/theme"
)

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), theme.Default())
}

func newUpstream(t *testing.T, root, model, capabilities string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	serve := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.HandleFunc("/", serve(root))
	mux.HandleFunc("/model", serve(model))
	mux.HandleFunc("/capabilities", serve(capabilities))
	return httptest.NewServer(mux)
}

func TestProbe_Success(t *testing.T) {
	server := newUpstream(t,
		`{"registryid":"node","noderegistriescount":3}`,
		`{"groups":{"noderegistries":{"plural":"noderegistries"}}}`,
		`{"apis":["/model"]}`,
	)
	defer server.Close()

	prober := NewHTTPProber(2*time.Second, testLogger())
	result, err := prober.Probe(context.Background(), domain.Upstream{URL: server.URL}, nil)

	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(result.Model, "groups.noderegistries").Exists())
	assert.True(t, gjson.GetBytes(result.Capabilities, "apis").IsArray())

	// root counts fold into the model document
	assert.Equal(t, int64(3), gjson.GetBytes(result.Model, "noderegistriescount").Int())
}

func TestProbe_SendsAuthAndTraceHeaders(t *testing.T) {
	var sawAuth, sawTrace, sawCorrelation bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization") == "Bearer sekret"
		sawTrace = r.Header.Get("traceparent") != ""
		sawCorrelation = r.Header.Get("x-correlation-id") != ""
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	prober := NewHTTPProber(2*time.Second, testLogger())
	_, err := prober.Probe(context.Background(), domain.Upstream{URL: server.URL, APIKey: "sekret"}, nil)

	require.NoError(t, err)
	assert.True(t, sawAuth)
	assert.True(t, sawTrace)
	assert.True(t, sawCorrelation)
}

func TestProbe_FailsWhenAnyDocumentErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{}`)) })
	mux.HandleFunc("/model", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{}`)) })
	mux.HandleFunc("/capabilities", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	prober := NewHTTPProber(2*time.Second, testLogger())
	_, err := prober.Probe(context.Background(), domain.Upstream{URL: server.URL}, nil)

	assert.Error(t, err)
}

func TestProbe_FailsOnInvalidJSON(t *testing.T) {
	server := newUpstream(t, `{}`, `<html>not json</html>`, `{}`)
	defer server.Close()

	prober := NewHTTPProber(2*time.Second, testLogger())
	_, err := prober.Probe(context.Background(), domain.Upstream{URL: server.URL}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestProbe_FailsWhenUnreachable(t *testing.T) {
	prober := NewHTTPProber(500*time.Millisecond, testLogger())
	_, err := prober.Probe(context.Background(), domain.Upstream{URL: "http://127.0.0.1:1"}, nil)

	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	server := newUpstream(t, `{}`, `{}`, `{}`)
	defer server.Close()

	prober := NewHTTPProber(2*time.Second, testLogger())

	latency, err := prober.Ping(context.Background(), domain.Upstream{URL: server.URL}, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, latency, time.Duration(0))

	_, err = prober.Ping(context.Background(), domain.Upstream{URL: "http://127.0.0.1:1"}, 500*time.Millisecond)
	assert.Error(t, err)
}

func TestFoldRootCounts(t *testing.T) {
	model := []byte(`{"groups":{}}`)
	root := []byte(`{"registryid":"x","noderegistriescount":5,"name":"reg"}`)

	folded := foldRootCounts(model, root)

	assert.Equal(t, int64(5), gjson.GetBytes(folded, "noderegistriescount").Int())
	assert.False(t, gjson.GetBytes(folded, "registryid").Exists())
	assert.False(t, gjson.GetBytes(folded, "name").Exists())
}
