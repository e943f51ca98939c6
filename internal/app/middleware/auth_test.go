package middleware

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/logger"
	"github.com/xregistry/bridge/theme"
)

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), theme.Default())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func authedRequest(method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	cfg := config.BridgeConfig{
		APIKey:          "sekret",
		RequiredGroups:  []string{"registry-readers"},
		PrincipalHeader: "x-ms-client-principal",
	}

	handler := WithRequestContext(Auth(cfg, testLogger())(okHandler()))

	r := httptest.NewRequest(method, "http://bridge.example.com"+path, nil)
	if mutate != nil {
		mutate(r)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestAuth_RejectsWithoutCredentials(t *testing.T) {
	w := authedRequest("GET", "/model", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_AcceptsBearerKey(t *testing.T) {
	w := authedRequest("GET", "/model", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer sekret")
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RejectsWrongBearerKey(t *testing.T) {
	w := authedRequest("GET", "/model", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer wrong")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_AcceptsPrincipalWithRequiredGroup(t *testing.T) {
	principal := base64.StdEncoding.EncodeToString(
		[]byte(`{"claims":[{"typ":"groups","val":"registry-readers"}]}`))

	w := authedRequest("GET", "/model", func(r *http.Request) {
		r.Header.Set("x-ms-client-principal", principal)
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RejectsPrincipalWithoutRequiredGroup(t *testing.T) {
	principal := base64.StdEncoding.EncodeToString(
		[]byte(`{"claims":[{"typ":"groups","val":"some-other-team"}]}`))

	w := authedRequest("GET", "/model", func(r *http.Request) {
		r.Header.Set("x-ms-client-principal", principal)
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_HealthAndStatusAreExempt(t *testing.T) {
	assert.Equal(t, http.StatusOK, authedRequest("GET", "/health", nil).Code)
	assert.Equal(t, http.StatusOK, authedRequest("GET", "/status", nil).Code)
}

func TestAuth_LocalhostIsExempt(t *testing.T) {
	for _, host := range []string{"localhost:8080", "127.0.0.1:8080", "[::1]:8080"} {
		w := authedRequest("GET", "/model", func(r *http.Request) {
			r.Host = host
		})
		assert.Equal(t, http.StatusOK, w.Code, host)
	}
}

func TestAuth_PreflightAlwaysAllowed(t *testing.T) {
	w := authedRequest("OPTIONS", "/noderegistries/n1", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestAuth_OpenWhenNothingConfigured(t *testing.T) {
	handler := Auth(config.BridgeConfig{}, testLogger())(okHandler())

	r := httptest.NewRequest("GET", "http://bridge.example.com/model", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}
