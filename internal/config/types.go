package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the bridge.
type Config struct {
	Server      ServerConfig
	Bridge      BridgeConfig
	Lifecycle   LifecycleConfig
	Logging     LoggingConfig
	Downstreams DownstreamsConfig
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestLogging  bool
}

// GetAddress returns the listener address in host:port format.
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BridgeConfig holds bridge-level behaviour: base URL handling, auth and
// path prefixing.
type BridgeConfig struct {
	// BaseURL overrides the effective base URL used when rewriting
	// upstream response bodies. Empty means derive per request.
	BaseURL string
	// BaseURLHeader names the header injected into upstream requests
	// carrying the effective base URL.
	BaseURLHeader string
	// APIKey, when non-empty, requires clients to present it as a bearer
	// token.
	APIKey string
	// RequiredGroups lists principal group claims, any one of which
	// satisfies authorisation.
	RequiredGroups []string
	// PrincipalHeader names the header carrying the base64-encoded
	// principal document.
	PrincipalHeader string
	// PathPrefix, when set, prefixes all bridge paths and is stripped
	// before upstream dispatch. Read once at startup.
	PathPrefix string
	// WellKnownGroups are group types whose collection count defaults to 1
	// when the owning upstream does not publish one.
	WellKnownGroups []string
	// SpecVersion is the xRegistry spec version the bridge reports and
	// accepts via the ?specversion query parameter.
	SpecVersion string
}

// LifecycleConfig holds probe and retry timing.
type LifecycleConfig struct {
	// StartupDelay is the wait before the first probe round.
	StartupDelay time.Duration
	// RetryInterval is the period between retry ticks for inactive
	// upstreams.
	RetryInterval time.Duration
	// ProbeTimeout bounds each individual probe HTTP request.
	ProbeTimeout time.Duration
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string
	LogDir     string
	Theme      string
	FileOutput bool
}

// DownstreamsConfig is the set of configured upstream registries, in file
// order. Order matters: it decides who wins group-type collisions.
type DownstreamsConfig struct {
	Servers []ServerEntry `json:"servers"`
}

// ServerEntry configures one upstream registry.
type ServerEntry struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey,omitempty"`
}
