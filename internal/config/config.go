package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ACCEL_SECURITY_MAX_PATH_LENGTH.
const EnvPrefix = "ACCEL"

type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr" json:"http_addr" envconfig:"HTTP_ADDR"`
	AdminAddr string `yaml:"admin_addr" json:"admin_addr" envconfig:"ADMIN_ADDR"`
}

// SecurityConfig feeds the admission policy.
type SecurityConfig struct {
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods" envconfig:"ALLOWED_METHODS"`
	MaxPathLength  int      `yaml:"max_path_length" json:"max_path_length" envconfig:"MAX_PATH_LENGTH"`
}

type UpstreamConfig struct {
	Name    string   `yaml:"name" json:"name"`
	Targets []string `yaml:"targets" json:"targets"`
	Timeout int      `yaml:"timeout_ms" json:"timeout_ms"`
}

// PlatformConfig maps a path prefix (e.g. /gh) onto an upstream.
type PlatformConfig struct {
	Prefix      string `yaml:"prefix" json:"prefix"`
	UpstreamRef string `yaml:"upstream" json:"upstream"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"rps" json:"rps" envconfig:"RPS"`
	Burst             int `yaml:"burst" json:"burst" envconfig:"BURST"`
}

type RetryConfig struct {
	MaxRetries        int `yaml:"max_retries" json:"max_retries" envconfig:"MAX_RETRIES"`
	InitialIntervalMS int `yaml:"initial_interval_ms" json:"initial_interval_ms" envconfig:"INITIAL_INTERVAL_MS"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" json:"log_format" envconfig:"LOG_FORMAT"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server" envconfig:"SERVER"`
	Security      SecurityConfig      `yaml:"security" json:"security" envconfig:"SECURITY"`
	Upstreams     []UpstreamConfig    `yaml:"upstreams" json:"upstreams" ignored:"true"`
	Platforms     []PlatformConfig    `yaml:"platforms" json:"platforms" ignored:"true"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit" envconfig:"RATE_LIMIT"`
	Retry         RetryConfig         `yaml:"retry" json:"retry" envconfig:"RETRY"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" envconfig:"OBSERVABILITY"`
}

// Default returns the built-in configuration: GET/HEAD for generic traffic,
// 2048 byte paths, and the standard platform table.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{HTTPAddr: ":8080", AdminAddr: ":9000"},
		Security: SecurityConfig{
			AllowedMethods: []string{"GET", "HEAD"},
			MaxPathLength:  2048,
		},
		Retry:         RetryConfig{MaxRetries: 3, InitialIntervalMS: 1000},
		Observability: ObservabilityConfig{LogLevel: "info", LogFormat: "json"},
	}
	for _, p := range defaultPlatforms {
		cfg.Upstreams = append(cfg.Upstreams, UpstreamConfig{Name: p.name, Targets: []string{p.target}, Timeout: 30000})
		cfg.Platforms = append(cfg.Platforms, PlatformConfig{Prefix: p.prefix, UpstreamRef: p.name})
	}
	return cfg
}

var defaultPlatforms = []struct{ name, prefix, target string }{
	{"github", "/gh", "https://github.com"},
	{"gitlab", "/gl", "https://gitlab.com"},
	{"huggingface", "/hf", "https://huggingface.co"},
	{"npm", "/npm", "https://registry.npmjs.org"},
	{"pypi", "/pypi", "https://pypi.org"},
	{"ghcr", "/cr/ghcr", "https://ghcr.io"},
	{"dockerhub", "/cr/docker", "https://registry-1.docker.io"},
	{"openai", "/ip/openai", "https://api.openai.com"},
	{"anthropic", "/ip/anthropic", "https://api.anthropic.com"},
}

// Load reads the YAML file at path on top of Default, applies ACCEL_*
// environment overrides and validates the result.
//
// A file that lists upstreams replaces the default upstreams. When it lists
// no platforms, only the default platforms whose upstream is still declared
// are kept; an explicit empty platforms list disables them all.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	defaults := cfg.Platforms
	cfg.Platforms = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if cfg.Platforms == nil {
		cfg.Platforms = platformsFor(cfg.Upstreams, defaults)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func platformsFor(upstreams []UpstreamConfig, platforms []PlatformConfig) []PlatformConfig {
	declared := make(map[string]struct{}, len(upstreams))
	for _, u := range upstreams {
		declared[u.Name] = struct{}{}
	}
	out := make([]PlatformConfig, 0, len(platforms))
	for _, p := range platforms {
		if _, ok := declared[p.UpstreamRef]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) normalize() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = ":9000"
	}
	for i, m := range c.Security.AllowedMethods {
		c.Security.AllowedMethods[i] = strings.TrimSpace(m)
	}
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.Security.MaxPathLength <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("security.max_path_length must be positive, got %d", c.Security.MaxPathLength))
	}
	if len(c.Security.AllowedMethods) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("security.allowed_methods must not be empty"))
	}
	for _, m := range c.Security.AllowedMethods {
		if !httpguts.ValidHeaderFieldName(m) {
			errs = multierror.Append(errs, fmt.Errorf("security.allowed_methods: %q is not a valid method token", m))
		}
	}

	upstreams := make(map[string]struct{}, len(c.Upstreams))
	for i, u := range c.Upstreams {
		if u.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("upstreams[%d]: name required", i))
			continue
		}
		if _, dup := upstreams[u.Name]; dup {
			errs = multierror.Append(errs, fmt.Errorf("upstreams[%d]: duplicate name %q", i, u.Name))
		}
		upstreams[u.Name] = struct{}{}
		if len(u.Targets) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("upstream %q: at least one target required", u.Name))
		}
		for _, t := range u.Targets {
			if pu, err := url.Parse(t); err != nil || pu.Scheme == "" || pu.Host == "" {
				errs = multierror.Append(errs, fmt.Errorf("upstream %q: invalid target %q", u.Name, t))
			}
		}
	}

	prefixes := make(map[string]struct{}, len(c.Platforms))
	for i, p := range c.Platforms {
		if !strings.HasPrefix(p.Prefix, "/") || len(p.Prefix) < 2 {
			errs = multierror.Append(errs, fmt.Errorf("platforms[%d]: prefix %q must start with / and name a platform", i, p.Prefix))
		}
		if _, dup := prefixes[p.Prefix]; dup {
			errs = multierror.Append(errs, fmt.Errorf("platforms[%d]: duplicate prefix %q", i, p.Prefix))
		}
		prefixes[p.Prefix] = struct{}{}
		if _, ok := upstreams[p.UpstreamRef]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("platform %q: unknown upstream %q", p.Prefix, p.UpstreamRef))
		}
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = multierror.Append(errs, fmt.Errorf("rate_limit values must not be negative"))
	}
	if c.Retry.MaxRetries < 0 || c.Retry.InitialIntervalMS < 0 {
		errs = multierror.Append(errs, fmt.Errorf("retry values must not be negative"))
	}

	return errs.ErrorOrNil()
}
