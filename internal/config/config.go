package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8080"
	defaultTokenHeader    = "X-ConfigReader-Token"
	defaultRequestsPerDay = 10
	defaultBurstRPS       = 25.0
	defaultBurstCapacity  = 50
	defaultServiceName    = "configreader"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	LogLevel             string
	ServiceName          string
	SettingsFile         string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool

	// Transport-level burst guard, independent of the daily quota.
	BurstRPS      float64
	BurstCapacity int

	// Allow-list gate.
	WhitelistEnabled bool
	AllowedCIDRs     []string

	// Availability gate.
	APIEnabled      bool
	GuardedPrefixes []string
	ExemptPrefixes  []string

	// Audit-safe logging.
	SensitivePrefixes []string

	// Daily quota gate.
	RequestsPerDay int

	// Token authentication gate.
	RequireAuth        bool
	TokenHeader        string
	StaticTokens       []string
	AuthExemptPrefixes []string

	// Issued-token store.
	TokenIssuanceEnabled bool
	SingleActiveToken    bool
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string   `yaml:"port"`
	LogLevel             string   `yaml:"log_level"`
	ServiceName          string   `yaml:"service_name"`
	SettingsFile         string   `yaml:"settings_file"`
	ShutdownGracePeriod  string   `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string   `yaml:"read_header_timeout"`
	WriteTimeout         string   `yaml:"write_timeout"`
	IdleTimeout          string   `yaml:"idle_timeout"`
	EnableRequestLogging *bool    `yaml:"enable_request_logging"`
	Burst                struct {
		RPS      *float64 `yaml:"rps"`
		Capacity *int     `yaml:"capacity"`
	} `yaml:"burst"`
	Whitelist struct {
		Enabled *bool    `yaml:"enabled"`
		CIDRs   []string `yaml:"cidrs"`
	} `yaml:"ip_whitelist"`
	API struct {
		Enabled         *bool    `yaml:"enabled"`
		GuardedPrefixes []string `yaml:"guarded_prefixes"`
		ExemptPrefixes  []string `yaml:"exempt_prefixes"`
	} `yaml:"api"`
	SensitivePrefixes []string `yaml:"sensitive_prefixes"`
	RequestsPerDay    *int     `yaml:"requests_per_day"`
	Auth              struct {
		Required       *bool    `yaml:"required"`
		TokenHeader    string   `yaml:"token_header"`
		StaticTokens   []string `yaml:"static_tokens"`
		ExemptPrefixes []string `yaml:"exempt_prefixes"`
	} `yaml:"auth"`
	Token struct {
		IssuanceEnabled *bool `yaml:"issuance_enabled"`
		SingleActive    *bool `yaml:"single_active"`
	} `yaml:"token"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	SettingsFile   *string
	RequestsPerDay *int
	RequireAuth    *bool
	APIEnabled     *bool
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	applyEnvConfig(&cfg)

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values. The posture is
// production-safe: auth required, issuance disabled, whitelist off until
// ranges are configured.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ServiceName:          defaultServiceName,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		BurstRPS:             defaultBurstRPS,
		BurstCapacity:        defaultBurstCapacity,
		WhitelistEnabled:     false,
		APIEnabled:           true,
		GuardedPrefixes:      []string{"/config"},
		ExemptPrefixes:       []string{"/token", "/health"},
		SensitivePrefixes:    []string{"/config"},
		RequestsPerDay:       defaultRequestsPerDay,
		RequireAuth:          true,
		TokenHeader:          defaultTokenHeader,
		AuthExemptPrefixes:   []string{"/token", "/health"},
		TokenIssuanceEnabled: false,
		SingleActiveToken:    true,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.ServiceName != "" {
		cfg.ServiceName = yamlCfg.ServiceName
	}
	if yamlCfg.SettingsFile != "" {
		cfg.SettingsFile = yamlCfg.SettingsFile
	}

	applyDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	applyDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	applyDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	applyDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.Burst.RPS != nil && *yamlCfg.Burst.RPS >= 0 {
		cfg.BurstRPS = *yamlCfg.Burst.RPS
	}
	if yamlCfg.Burst.Capacity != nil && *yamlCfg.Burst.Capacity >= 0 {
		cfg.BurstCapacity = *yamlCfg.Burst.Capacity
	}

	if yamlCfg.Whitelist.Enabled != nil {
		cfg.WhitelistEnabled = *yamlCfg.Whitelist.Enabled
	}
	if len(yamlCfg.Whitelist.CIDRs) > 0 {
		cfg.AllowedCIDRs = yamlCfg.Whitelist.CIDRs
	}

	if yamlCfg.API.Enabled != nil {
		cfg.APIEnabled = *yamlCfg.API.Enabled
	}
	if len(yamlCfg.API.GuardedPrefixes) > 0 {
		cfg.GuardedPrefixes = yamlCfg.API.GuardedPrefixes
	}
	if len(yamlCfg.API.ExemptPrefixes) > 0 {
		cfg.ExemptPrefixes = yamlCfg.API.ExemptPrefixes
	}

	if len(yamlCfg.SensitivePrefixes) > 0 {
		cfg.SensitivePrefixes = yamlCfg.SensitivePrefixes
	}
	if yamlCfg.RequestsPerDay != nil {
		cfg.RequestsPerDay = *yamlCfg.RequestsPerDay
	}

	if yamlCfg.Auth.Required != nil {
		cfg.RequireAuth = *yamlCfg.Auth.Required
	}
	if yamlCfg.Auth.TokenHeader != "" {
		cfg.TokenHeader = yamlCfg.Auth.TokenHeader
	}
	if len(yamlCfg.Auth.StaticTokens) > 0 {
		cfg.StaticTokens = yamlCfg.Auth.StaticTokens
	}
	if len(yamlCfg.Auth.ExemptPrefixes) > 0 {
		cfg.AuthExemptPrefixes = yamlCfg.Auth.ExemptPrefixes
	}

	if yamlCfg.Token.IssuanceEnabled != nil {
		cfg.TokenIssuanceEnabled = *yamlCfg.Token.IssuanceEnabled
	}
	if yamlCfg.Token.SingleActive != nil {
		cfg.SingleActiveToken = *yamlCfg.Token.SingleActive
	}
}

func applyDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if path := strings.TrimSpace(os.Getenv("SETTINGS_FILE")); path != "" {
		cfg.SettingsFile = path
	}

	applyEnvBool(&cfg.WhitelistEnabled, "IP_WHITELIST_ENABLED")
	if raw := strings.TrimSpace(os.Getenv("ALLOWED_CIDRS")); raw != "" {
		cfg.AllowedCIDRs = splitAndTrim(raw)
	}

	applyEnvBool(&cfg.APIEnabled, "API_ENABLED")
	applyEnvBool(&cfg.RequireAuth, "REQUIRE_AUTH")
	if header := strings.TrimSpace(os.Getenv("TOKEN_HEADER")); header != "" {
		cfg.TokenHeader = header
	}
	if raw := strings.TrimSpace(os.Getenv("STATIC_TOKENS")); raw != "" {
		cfg.StaticTokens = splitAndTrim(raw)
	}

	if raw := strings.TrimSpace(os.Getenv("REQUESTS_PER_DAY")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RequestsPerDay = value
		}
	}

	applyEnvBool(&cfg.TokenIssuanceEnabled, "TOKEN_ISSUANCE_ENABLED")
	applyEnvBool(&cfg.SingleActiveToken, "SINGLE_ACTIVE_TOKEN")

	if raw := strings.TrimSpace(os.Getenv("BURST_RPS")); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value >= 0 {
			cfg.BurstRPS = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("BURST_CAPACITY")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.BurstCapacity = value
		}
	}
}

func applyEnvBool(dst *bool, name string) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return
	}
	if value, err := strconv.ParseBool(raw); err == nil {
		*dst = value
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.SettingsFile != nil && *overrides.SettingsFile != "" {
		cfg.SettingsFile = *overrides.SettingsFile
	}
	if overrides.RequestsPerDay != nil && *overrides.RequestsPerDay > 0 {
		cfg.RequestsPerDay = *overrides.RequestsPerDay
	}
	if overrides.RequireAuth != nil {
		cfg.RequireAuth = *overrides.RequireAuth
	}
	if overrides.APIEnabled != nil {
		cfg.APIEnabled = *overrides.APIEnabled
	}
}

// validateConfig validates the final configuration. Malformed CIDR strings
// are deliberately not fatal here; the allow-list gate logs and skips them.
func validateConfig(cfg Config) error {
	if cfg.RequestsPerDay <= 0 {
		return fmt.Errorf("REQUESTS_PER_DAY must be positive")
	}
	if cfg.BurstRPS < 0 || cfg.BurstCapacity < 0 {
		return fmt.Errorf("burst rate and capacity must be >= 0")
	}
	if strings.TrimSpace(cfg.TokenHeader) == "" {
		return fmt.Errorf("token header name cannot be empty")
	}
	if cfg.RequireAuth && len(cfg.StaticTokens) == 0 && !cfg.TokenIssuanceEnabled {
		return fmt.Errorf("auth is required but no static tokens are configured and issuance is disabled")
	}
	return nil
}
