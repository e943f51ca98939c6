package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort                = 8080
	DefaultBaseURLHeader       = "x-base-url"
	DefaultPrincipalHeader     = "x-ms-client-principal"
	DefaultConfigFile          = "downstreams.json"
	DefaultSpecVersion         = "1.0-rc1"
	DefaultStartupWaitMs       = 60000
	DefaultRetryIntervalMs     = 60000
	DefaultProbeTimeoutMs      = 10000
	DefaultShutdownTimeoutSecs = 10
)

// DefaultWellKnownGroups are the group types whose collection count defaults
// to 1 when the owning upstream publishes none. Overridable via
// WELL_KNOWN_GROUPS.
var DefaultWellKnownGroups = []string{
	"javaregistries",
	"dotnetregistries",
	"noderegistries",
	"pythonregistries",
	"containerregistries",
}

// Load reads configuration from environment variables and the downstreams
// JSON source. Invalid downstreams configuration is a fatal startup error,
// reported via the returned error.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("BASE_URL_HEADER", DefaultBaseURLHeader)
	v.SetDefault("PRINCIPAL_HEADER", DefaultPrincipalHeader)
	v.SetDefault("STARTUP_WAIT_TIME", DefaultStartupWaitMs)
	v.SetDefault("RETRY_INTERVAL", DefaultRetryIntervalMs)
	v.SetDefault("SERVER_HEALTH_TIMEOUT", DefaultProbeTimeoutMs)
	v.SetDefault("SHUTDOWN_TIMEOUT", DefaultShutdownTimeoutSecs*1000)
	v.SetDefault("BRIDGE_CONFIG_FILE", DefaultConfigFile)
	v.SetDefault("BRIDGE_LOG_LEVEL", "info")
	v.SetDefault("BRIDGE_LOG_DIR", "./logs")
	v.SetDefault("BRIDGE_THEME", "default")
	v.SetDefault("BRIDGE_REQUEST_LOGGING", true)
	v.SetDefault("SPEC_VERSION", DefaultSpecVersion)

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("HOST"),
			Port:            v.GetInt("PORT"),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // streaming proxy responses must not be cut off
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: msDuration(v.GetInt("SHUTDOWN_TIMEOUT")),
			RequestLogging:  v.GetBool("BRIDGE_REQUEST_LOGGING"),
		},
		Bridge: BridgeConfig{
			BaseURL:         strings.TrimSuffix(v.GetString("BASE_URL"), "/"),
			BaseURLHeader:   v.GetString("BASE_URL_HEADER"),
			APIKey:          v.GetString("BRIDGE_API_KEY"),
			RequiredGroups:  splitList(v.GetString("REQUIRED_GROUPS")),
			PrincipalHeader: v.GetString("PRINCIPAL_HEADER"),
			PathPrefix:      normalisePrefix(v.GetString("API_PATH_PREFIX")),
			WellKnownGroups: wellKnownGroups(v.GetString("WELL_KNOWN_GROUPS")),
			SpecVersion:     v.GetString("SPEC_VERSION"),
		},
		Lifecycle: LifecycleConfig{
			StartupDelay:  msDuration(v.GetInt("STARTUP_WAIT_TIME")),
			RetryInterval: msDuration(v.GetInt("RETRY_INTERVAL")),
			ProbeTimeout:  msDuration(v.GetInt("SERVER_HEALTH_TIMEOUT")),
		},
		Logging: LoggingConfig{
			Level:      v.GetString("BRIDGE_LOG_LEVEL"),
			LogDir:     v.GetString("BRIDGE_LOG_DIR"),
			Theme:      v.GetString("BRIDGE_THEME"),
			FileOutput: v.GetBool("BRIDGE_FILE_OUTPUT"),
		},
	}

	downstreams, err := loadDownstreams(v.GetString("DOWNSTREAMS_JSON"), v.GetString("BRIDGE_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Downstreams = *downstreams

	return cfg, nil
}

// loadDownstreams reads the downstreams configuration. The inline
// DOWNSTREAMS_JSON environment variable takes precedence over the config
// file.
func loadDownstreams(inline, file string) (*DownstreamsConfig, error) {
	var raw []byte
	var source string

	if inline != "" {
		raw = []byte(inline)
		source = "DOWNSTREAMS_JSON"
	} else {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading downstreams config %s: %w", file, err)
		}
		raw = data
		source = file
	}

	return ParseDownstreams(raw, source)
}

// ParseDownstreams validates and parses a downstreams JSON document.
func ParseDownstreams(raw []byte, source string) (*DownstreamsConfig, error) {
	var doc struct {
		Servers *[]ServerEntry `json:"servers"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid downstreams JSON in %s: %w", source, err)
	}
	if doc.Servers == nil {
		return nil, fmt.Errorf("downstreams config %s is missing a \"servers\" array", source)
	}

	cfg := &DownstreamsConfig{Servers: *doc.Servers}
	for i := range cfg.Servers {
		entry := &cfg.Servers[i]
		entry.URL = strings.TrimSuffix(strings.TrimSpace(entry.URL), "/")

		parsed, err := url.Parse(entry.URL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, fmt.Errorf("downstreams config %s: server %d has invalid url %q", source, i, entry.URL)
		}
	}

	return cfg, nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func wellKnownGroups(override string) []string {
	if groups := splitList(override); groups != nil {
		return groups
	}
	return DefaultWellKnownGroups
}

func normalisePrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}
