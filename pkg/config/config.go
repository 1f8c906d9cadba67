package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type AuthProviderConfig struct {
	Type   string `yaml:"type"`
	Config string `yaml:"config"`
}

type Config struct {
	Port                   int      `yaml:"port"`
	WatchPatterns          []string `yaml:"watchPatterns"`
	PollPeriodSeconds      int      `yaml:"pollPeriodSeconds"`
	FreshnessWindowSeconds int      `yaml:"freshnessWindowSeconds"`
	SessionTimeoutSeconds  int      `yaml:"sessionTimeoutSeconds"`

	AgentName        string `yaml:"agentName"`
	AgentDescription string `yaml:"agentDescription"`
	AgentVersion     string `yaml:"agentVersion"`
	PublicURL        string `yaml:"publicUrl"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Env       string `yaml:"env"`

	ClientAuth AuthProviderConfig `yaml:"clientAuth"`
	Tracing    TracingConfig      `yaml:"tracing"`
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing path,
// falling back to env vars and defaults only.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) != "" {
		return LoadConfig(filePath)
	}
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("WATCH_PATTERNS"); v != "" {
		c.WatchPatterns = splitPatterns(v)
	}
	if v := os.Getenv("POLL_PERIOD_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollPeriodSeconds = n
		}
	}
	if v := os.Getenv("FRESHNESS_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FreshnessWindowSeconds = n
		}
	}
	if v := os.Getenv("SESSION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SessionTimeoutSeconds = n
		}
	}
	if v := os.Getenv("AGENT_NAME"); v != "" {
		c.AgentName = v
	}
	if v := os.Getenv("AGENT_DESCRIPTION"); v != "" {
		c.AgentDescription = v
	}
	if v := os.Getenv("PUBLIC_URL"); v != "" {
		c.PublicURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("CLIENT_AUTH_PROVIDER"); v != "" {
		c.ClientAuth.Type = v
	}
	if v := os.Getenv("CLIENT_AUTH_CONFIG"); v != "" {
		c.ClientAuth.Config = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" && c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = v
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9009
	}
	if len(c.WatchPatterns) == 0 {
		c.WatchPatterns = []string{"results/*.json"}
	}
	if c.PollPeriodSeconds <= 0 {
		c.PollPeriodSeconds = 3
	}
	if c.FreshnessWindowSeconds <= 0 {
		c.FreshnessWindowSeconds = 600
	}
	if c.SessionTimeoutSeconds <= 0 {
		c.SessionTimeoutSeconds = 1500
	}
	if c.AgentName == "" {
		c.AgentName = "resultgate"
	}
	if c.AgentDescription == "" {
		c.AgentDescription = "Streams evaluation results as they land on disk."
	}
	if c.AgentVersion == "" {
		c.AgentVersion = "1.0.0"
	}
	if c.PublicURL == "" {
		c.PublicURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
}

func (c *Config) Validate() error {
	var errs []string

	if len(c.WatchPatterns) == 0 {
		errs = append(errs, "at least one watch pattern is required")
	}
	for _, p := range c.WatchPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			errs = append(errs, "watch pattern must not be empty")
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Sprintf("watch pattern %q is malformed", p))
		}
	}
	if c.PollPeriodSeconds <= 0 {
		errs = append(errs, "pollPeriodSeconds must be positive")
	}
	if c.FreshnessWindowSeconds <= 0 {
		errs = append(errs, "freshnessWindowSeconds must be positive")
	}
	if c.SessionTimeoutSeconds <= 0 {
		errs = append(errs, "sessionTimeoutSeconds must be positive")
	}
	if c.SessionTimeoutSeconds < c.PollPeriodSeconds {
		errs = append(errs, "sessionTimeoutSeconds must not be smaller than pollPeriodSeconds")
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "publicUrl must be a valid http(s) URL")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitPatterns(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}
