// Package config handles TOML configuration loading and validation for
// the reverse proxy daemon.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/reverseproxyd/config.toml",
	"configs/config.toml",
}

// reservedPaths are routes the daemon itself serves; no proxied route or
// metrics path may collide with them.
var reservedPaths = []string{"/healthz", "/proxy/status", "/metrics"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Routes  []RouteConfig `toml:"routes"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls request rate limiting on the listener, keyed by
// client IP plus the matched route.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// RouteConfig configures one proxied route: an inbound path prefix mapped
// to an upstream, plus the subset of proxy.Options exposed at the config
// layer.
type RouteConfig struct {
	ListenPath string `toml:"listen_path"`
	Target     string `toml:"target"`
	Forward    string `toml:"forward"`

	XFwd                  bool `toml:"xfwd"`
	ChangeOrigin          bool `toml:"change_origin"`
	PreserveHeaderKeyCase bool `toml:"preserve_header_key_case"`
	WS                    bool `toml:"ws"`

	Secure      *bool `toml:"secure"`
	ToProxy     bool  `toml:"to_proxy"`
	PrependPath *bool `toml:"prepend_path"`
	IgnorePath  bool  `toml:"ignore_path"`

	LocalAddress string `toml:"local_address"`
	Auth         string `toml:"auth"`

	HostRewrite     string `toml:"host_rewrite"`
	AutoRewrite     bool   `toml:"auto_rewrite"`
	ProtocolRewrite string `toml:"protocol_rewrite"`

	CookieDomainRewrite string `toml:"cookie_domain_rewrite"`
	CookiePathRewrite   string `toml:"cookie_path_rewrite"`

	Method string `toml:"method"`

	ProxyTimeoutSeconds int  `toml:"proxy_timeout_seconds"`
	TimeoutSeconds      int  `toml:"timeout_seconds"`
	FollowRedirects     bool `toml:"follow_redirects"`
	SelfHandleResponse  bool `toml:"self_handle_response"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/reverseproxyd/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one [[routes]] entry is required")
	}

	seenPaths := map[string]bool{}
	for i, r := range c.Routes {
		if r.ListenPath == "" {
			return fmt.Errorf("routes[%d].listen_path is required", i)
		}
		if r.ListenPath[0] != '/' {
			return fmt.Errorf("routes[%d].listen_path must start with '/'; got %q", i, r.ListenPath)
		}
		if seenPaths[r.ListenPath] {
			return fmt.Errorf("routes[%d].listen_path %q is configured more than once", i, r.ListenPath)
		}
		seenPaths[r.ListenPath] = true

		if err := checkReserved(r.ListenPath, "routes["+fmt.Sprint(i)+"].listen_path"); err != nil {
			return err
		}

		if r.Target == "" && r.Forward == "" {
			return fmt.Errorf("routes[%d]: target or forward is required", i)
		}
		if r.Target != "" {
			if _, err := url.Parse(r.Target); err != nil {
				return fmt.Errorf("routes[%d].target is not a valid URL: %w", i, err)
			}
		}
		if r.Forward != "" {
			if _, err := url.Parse(r.Forward); err != nil {
				return fmt.Errorf("routes[%d].forward is not a valid URL: %w", i, err)
			}
		}
		if r.ProxyTimeoutSeconds < 0 {
			return fmt.Errorf("routes[%d].proxy_timeout_seconds must be non-negative; got %d", i, r.ProxyTimeoutSeconds)
		}
		if r.TimeoutSeconds < 0 {
			return fmt.Errorf("routes[%d].timeout_seconds must be non-negative; got %d", i, r.TimeoutSeconds)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path != "" {
		if err := checkReserved(c.Metrics.Path, "metrics.path"); err != nil {
			return err
		}
		if seenPaths[c.Metrics.Path] {
			return fmt.Errorf("metrics.path %q conflicts with a configured route", c.Metrics.Path)
		}
	}

	return nil
}

// checkReserved validates that p starts with '/' and does not collide with
// a path the daemon itself serves.
func checkReserved(p, field string) error {
	if p[0] != '/' {
		return fmt.Errorf("%s must start with '/'; got %q", field, p)
	}
	for _, reserved := range reservedPaths {
		if p == reserved || strings.HasPrefix(p, reserved+"/") {
			return fmt.Errorf("%s %q conflicts with reserved route %q", field, p, reserved)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Setting port=0 in
// the config file therefore results in the default port (8080).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
