package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Canonical platform identifiers. The set is closed: the registry dispatches
// statically on these names and there is no plugin mechanism.
const (
	PlatformBilibili    = "bilibili"
	PlatformDouyin      = "douyin"
	PlatformXiaohongshu = "xiaohongshu"
	PlatformWeibo       = "weibo"
	PlatformZhihu       = "zhihu"
	PlatformTieba       = "tieba"
	PlatformKuaishou    = "kuaishou"
)

// SupportedPlatforms lists the canonical identifiers in registry-default
// search order.
var SupportedPlatforms = []string{
	PlatformBilibili,
	PlatformDouyin,
	PlatformXiaohongshu,
	PlatformWeibo,
	PlatformZhihu,
	PlatformTieba,
	PlatformKuaishou,
}

// defaultAliases maps common platform shorthands to canonical names.
// Lookups are case-insensitive and trimmed.
var defaultAliases = map[string]string{
	"bili": PlatformBilibili,
	"dy":   PlatformDouyin,
	"xhs":  PlatformXiaohongshu,
	"wb":   PlatformWeibo,
	"ks":   PlatformKuaishou,
}

// Limits caps how much content a single session may pull in one run.
type Limits struct {
	// MaxContents is the uniform per-platform content cap.
	MaxContents int `mapstructure:"max_contents"`
	// CommentCaps holds per-platform comment ceilings. Platforms without an
	// entry fall back to DefaultCommentCap.
	CommentCaps map[string]int `mapstructure:"comment_caps"`
}

// DefaultCommentCap applies to any canonical platform without an explicit cap.
const DefaultCommentCap = 10

// Browser configures the shared automation resource.
type Browser struct {
	// CDPAddress is the DevTools endpoint of an already-running browser,
	// e.g. "http://127.0.0.1:9222". Sessions attach rather than spawn.
	CDPAddress    string `mapstructure:"cdp_address"`
	Headless      bool   `mapstructure:"headless"`
	LaunchTimeout int    `mapstructure:"launch_timeout"` // seconds
	AutoClose     bool   `mapstructure:"auto_close"`
}

// Login configures how sessions authenticate against platforms.
type Login struct {
	// Type is one of "qrcode", "phone", "cookie".
	Type string `mapstructure:"type"`
	// Cookies is the raw cookie string used when Type is "cookie".
	Cookies string `mapstructure:"cookies"`
	// SaveState persists authenticated cookies across runs.
	SaveState bool   `mapstructure:"save_state"`
	StatePath string `mapstructure:"state_path"`
}

// Network configures the HTTP side of every platform client.
type Network struct {
	EnableProxy    bool   `mapstructure:"enable_proxy"`
	ProxyFile      string `mapstructure:"proxy_file"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds
	// CrawlInterval is the minimum spacing, in seconds, between two
	// externally-bound calls by the same session.
	CrawlInterval float64 `mapstructure:"crawl_interval"`
	// Fingerprint selects the TLS ClientHello profile (chrome/firefox/safari/go).
	Fingerprint string `mapstructure:"fingerprint"`
}

// API configures the REST façade and the metrics endpoint.
type API struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"` // 0 disables /metrics
}

// Config is the process-wide configuration. It is read extensively during a
// run and mutated only through Update; readers of live-updatable fields must
// go through the accessor methods so the single-writer discipline holds.
type Config struct {
	mu sync.RWMutex

	Platforms []string          `mapstructure:"platforms"`
	Aliases   map[string]string `mapstructure:"aliases"`
	Limits    Limits            `mapstructure:"limits"`
	Browser   Browser           `mapstructure:"browser"`
	Login     Login             `mapstructure:"login"`
	Network   Network           `mapstructure:"network"`
	API       API               `mapstructure:"api"`

	// Concurrency bounds the per-platform worker pool. 1 preserves the
	// strictly sequential reference behaviour.
	Concurrency int `mapstructure:"concurrency"`
	// RunTimeout caps a whole orchestration run, in seconds. 0 means none.
	RunTimeout int  `mapstructure:"run_timeout"`
	Debug      bool `mapstructure:"debug"`
}

// Default returns a Config with the stock limits and aliases.
func Default() *Config {
	return &Config{
		Platforms: append([]string(nil), SupportedPlatforms...),
		Aliases:   copyAliases(defaultAliases),
		Limits: Limits{
			MaxContents: 8,
			CommentCaps: map[string]int{
				PlatformBilibili:    10,
				PlatformDouyin:      10,
				PlatformXiaohongshu: 10,
				PlatformWeibo:       10,
				PlatformZhihu:       20,
				PlatformTieba:       100,
				PlatformKuaishou:    10,
			},
		},
		Browser: Browser{
			CDPAddress:    "http://127.0.0.1:9222",
			Headless:      false,
			LaunchTimeout: 60,
			AutoClose:     true,
		},
		Login: Login{
			Type:      "qrcode",
			SaveState: true,
			StatePath: "magpie-login.db",
		},
		Network: Network{
			RequestTimeout: 30,
			CrawlInterval:  1.5,
			Fingerprint:    "chrome",
		},
		API: API{
			Host: "0.0.0.0",
			Port: 8888,
		},
		Concurrency: 1,
	}
}

// Load builds a Config from defaults, an optional config file and MAGPIE_*
// environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MAGPIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("magpie")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.magpie")
	}

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist; the default search locations may not.
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("platforms", d.Platforms)
	v.SetDefault("limits.max_contents", d.Limits.MaxContents)
	v.SetDefault("browser.cdp_address", d.Browser.CDPAddress)
	v.SetDefault("browser.launch_timeout", d.Browser.LaunchTimeout)
	v.SetDefault("browser.auto_close", d.Browser.AutoClose)
	v.SetDefault("login.type", d.Login.Type)
	v.SetDefault("login.save_state", d.Login.SaveState)
	v.SetDefault("login.state_path", d.Login.StatePath)
	v.SetDefault("network.request_timeout", d.Network.RequestTimeout)
	v.SetDefault("network.crawl_interval", d.Network.CrawlInterval)
	v.SetDefault("network.fingerprint", d.Network.Fingerprint)
	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("concurrency", d.Concurrency)
}

// NormalizePlatform lowercases, trims and resolves aliases. Names with no
// alias pass through unchanged; callers still validate support separately.
func (c *Config) NormalizePlatform(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	c.mu.RLock()
	defer c.mu.RUnlock()
	if canonical, ok := c.Aliases[name]; ok {
		return canonical
	}
	return name
}

// IsSupported reports whether name resolves to a canonical supported platform.
func (c *Config) IsSupported(name string) bool {
	normalized := c.NormalizePlatform(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.Platforms {
		if p == normalized {
			return true
		}
	}
	return false
}

// Supported returns the canonical platform set in registry-default order.
func (c *Config) Supported() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.Platforms...)
}

// CommentCapFor returns the comment ceiling for a platform, defaulting to
// DefaultCommentCap for any name without an explicit cap.
func (c *Config) CommentCapFor(name string) int {
	normalized := c.NormalizePlatform(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n, ok := c.Limits.CommentCaps[normalized]; ok {
		return n
	}
	return DefaultCommentCap
}

// MaxContents returns the uniform per-platform content cap.
func (c *Config) MaxContents() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Limits.MaxContents
}

// CrawlInterval returns the minimum inter-request spacing.
func (c *Config) CrawlInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Network.CrawlInterval * float64(time.Second))
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Network.RequestTimeout) * time.Second
}

// RunDeadline returns the whole-run timeout, or 0 when unbounded.
func (c *Config) RunDeadline() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.RunTimeout) * time.Second
}

// WorkerLimit returns the orchestration concurrency bound, at least 1.
func (c *Config) WorkerLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Concurrency < 1 {
		return 1
	}
	return c.Concurrency
}

// LoginType returns the configured interactive login mode.
func (c *Config) LoginType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Login.Type
}

// Cookies returns the cookie string used by cookie-mode login.
func (c *Config) Cookies() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Login.Cookies
}

// Headless reports whether the browser runs headless.
func (c *Config) Headless() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Browser.Headless
}

// Update merges the supplied fields into the live config. Only recognized
// keys are applied; unknown keys are silently ignored so forward-compatible
// callers never fail. Returns the keys that were actually applied.
func (c *Config) Update(fields map[string]any) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var applied []string
	for key, val := range fields {
		switch key {
		case "login_type":
			if s, ok := val.(string); ok {
				c.Login.Type = s
				applied = append(applied, key)
			}
		case "cookies":
			if s, ok := val.(string); ok {
				c.Login.Cookies = s
				applied = append(applied, key)
			}
		case "headless":
			if b, ok := val.(bool); ok {
				c.Browser.Headless = b
				applied = append(applied, key)
			}
		case "crawl_interval":
			if f, ok := toFloat(val); ok && f >= 0 {
				c.Network.CrawlInterval = f
				applied = append(applied, key)
			}
		case "request_timeout":
			if f, ok := toFloat(val); ok && f > 0 {
				c.Network.RequestTimeout = int(f)
				applied = append(applied, key)
			}
		case "max_contents":
			if f, ok := toFloat(val); ok && f >= 0 {
				c.Limits.MaxContents = int(f)
				applied = append(applied, key)
			}
		case "concurrency":
			if f, ok := toFloat(val); ok && f >= 1 {
				c.Concurrency = int(f)
				applied = append(applied, key)
			}
		case "debug":
			if b, ok := val.(bool); ok {
				c.Debug = b
				applied = append(applied, key)
			}
		}
	}
	return applied
}

// View returns a snapshot of the live-updatable fields for the façade.
func (c *Config) View() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	caps := make(map[string]int, len(c.Limits.CommentCaps))
	for k, v := range c.Limits.CommentCaps {
		caps[k] = v
	}
	return map[string]any{
		"login_type":      c.Login.Type,
		"headless":        c.Browser.Headless,
		"crawl_interval":  c.Network.CrawlInterval,
		"request_timeout": c.Network.RequestTimeout,
		"max_contents":    c.Limits.MaxContents,
		"concurrency":     c.Concurrency,
		"comment_caps":    caps,
		"debug":           c.Debug,
	}
}

// AliasTable returns a copy of the alias mapping.
func (c *Config) AliasTable() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyAliases(c.Aliases)
}

func copyAliases(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
