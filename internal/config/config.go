// Package config provides configuration management for the Git-Captain server.
// Settings come from an optional YAML file, then from environment variables
// (usually populated from a .env file), and finally from built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort                  = 3000
	DefaultGitPortEndpoint       = "https://localhost:3000"
	DefaultGitHubAPIBaseURL      = "https://api.github.com"
	DefaultGitHubOAuthBaseURL    = "https://github.com"
	DefaultGitHubStatusURL       = "https://www.githubstatus.com/api/v2/status.json"
	DefaultGitHubRateMax         = 600
	DefaultGeneralRequestsPerMin = 600
	DefaultAuthRequestsPerWindow = 300
	DefaultAuthWindowMinutes     = 5
	DefaultClientTimeoutMinutes  = 25
	DefaultSessionTimeoutMinutes = 30
	DefaultServiceStatus         = "up"
	DefaultServiceReason         = "Service is operational"

	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Config represents the application's configuration.
type Config struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the listening port.
	Port int `yaml:"port" json:"port"`

	// Environment is "development" or "production". Production enables HSTS and
	// drops the localhost CORS origins.
	Environment string `yaml:"environment" json:"environment"`

	// Debug enables debug level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile switches log output from stdout to rotating files under logs/.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB caps the total size of the log directory. <= 0 disables the cap.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// ProxyURL is the URL of an optional proxy server for outbound GitHub requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// GitPortEndpoint is the public origin of this server, used by the UI and CORS.
	GitPortEndpoint string `yaml:"git-port-endpoint" json:"git-port-endpoint"`

	GitHub    GitHubConfig    `yaml:"github" json:"github"`
	TLS       TLSConfig       `yaml:"tls" json:"tls"`
	RateLimit RateLimitConfig `yaml:"rate-limit" json:"rate-limit"`
	CORS      CORSConfig      `yaml:"cors" json:"cors"`
	Status    StatusConfig    `yaml:"status" json:"status"`

	// ClientTimeoutMinutes is reported to the UI as its idle timeout.
	ClientTimeoutMinutes int `yaml:"client-timeout-minutes" json:"client-timeout-minutes"`

	// SessionTimeoutMinutes bounds how long a browser session is considered live.
	SessionTimeoutMinutes int `yaml:"session-timeout-minutes" json:"session-timeout-minutes"`
}

// GitHubConfig holds the OAuth application credentials and upstream endpoints.
type GitHubConfig struct {
	ClientID     string `yaml:"client-id" json:"client-id"`
	ClientSecret string `yaml:"client-secret" json:"-"`
	OrgName      string `yaml:"org-name" json:"org-name"`

	// APIBaseURL, OAuthBaseURL and StatusURL can be pointed at stubs in tests.
	APIBaseURL   string `yaml:"api-base-url" json:"api-base-url"`
	OAuthBaseURL string `yaml:"oauth-base-url" json:"oauth-base-url"`
	StatusURL    string `yaml:"status-url" json:"status-url"`
}

// TLSConfig holds the key and certificate paths. HTTPS is served only when both are set.
type TLSConfig struct {
	PrivateKeyPath  string `yaml:"private-key-path" json:"private-key-path"`
	CertificatePath string `yaml:"certificate-path" json:"certificate-path"`
}

// RateLimitConfig configures outbound and inbound request limits.
type RateLimitConfig struct {
	// GitHubMaxPerMinute caps outbound GitHub calls across the whole process.
	GitHubMaxPerMinute int `yaml:"github-max-per-minute" json:"github-max-per-minute"`

	// GeneralPerMinute caps inbound requests per client IP.
	GeneralPerMinute int `yaml:"general-per-minute" json:"general-per-minute"`

	// AuthPerWindow caps inbound token-bearing requests per client IP per AuthWindowMinutes.
	AuthPerWindow     int `yaml:"auth-per-window" json:"auth-per-window"`
	AuthWindowMinutes int `yaml:"auth-window-minutes" json:"auth-window-minutes"`
}

// CORSConfig controls cross-origin handling.
type CORSConfig struct {
	// Enforce rejects disallowed origins with 403. When false they are only logged.
	Enforce bool `yaml:"enforce" json:"enforce"`

	// ExtraOrigins are appended to the built-in allow list.
	ExtraOrigins []string `yaml:"extra-origins,omitempty" json:"extra-origins,omitempty"`
}

// StatusConfig is the service state reported by checkGitCaptainStatus.
type StatusConfig struct {
	Status string `yaml:"status" json:"status"`
	Reason string `yaml:"reason" json:"reason"`
}

// LoadConfig reads the YAML file at configFile and applies environment overrides and defaults.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig. When optional is true a missing
// or empty file yields a configuration built from the environment and defaults alone.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}
	if configFile != "" {
		data, errRead := os.ReadFile(configFile)
		if errRead != nil {
			if !optional || !errors.Is(errRead, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", errRead)
			}
		} else if len(strings.TrimSpace(string(data))) > 0 {
			if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", errUnmarshal)
			}
		}
	}
	cfg.ApplyEnvOverrides(os.LookupEnv)
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyEnvOverrides overwrites settings with the environment variables the
// setup wizard writes to .env. Blank values are ignored.
func (cfg *Config) ApplyEnvOverrides(lookup func(string) (string, bool)) {
	if cfg == nil || lookup == nil {
		return
	}
	get := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if value, ok := lookup(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed, true
				}
			}
		}
		return "", false
	}
	getInt := func(keys ...string) (int, bool) {
		value, ok := get(keys...)
		if !ok {
			return 0, false
		}
		n, errAtoi := strconv.Atoi(value)
		if errAtoi != nil {
			return 0, false
		}
		return n, true
	}

	if v, ok := get("client_id", "CLIENT_ID"); ok {
		cfg.GitHub.ClientID = v
	}
	if v, ok := get("client_secret", "CLIENT_SECRET"); ok {
		cfg.GitHub.ClientSecret = v
	}
	if v, ok := get("GITHUB_ORG_NAME"); ok {
		cfg.GitHub.OrgName = v
	}
	if v, ok := getInt("PORT"); ok {
		cfg.Port = v
	}
	if v, ok := get("GIT_PORT_ENDPOINT"); ok {
		cfg.GitPortEndpoint = v
	}
	if v, ok := get("privateKeyPath", "PRIVATE_KEY_PATH"); ok {
		cfg.TLS.PrivateKeyPath = v
	}
	if v, ok := get("certificatePath", "CERTIFICATE_PATH"); ok {
		cfg.TLS.CertificatePath = v
	}
	if v, ok := getInt("TIMEOUT_MINUTES"); ok {
		cfg.ClientTimeoutMinutes = v
	}
	if v, ok := getInt("RATE_LIMIT_MAX"); ok {
		cfg.RateLimit.GitHubMaxPerMinute = v
	}
	if v, ok := get("NODE_ENV", "GIT_CAPTAIN_ENV"); ok {
		cfg.Environment = strings.ToLower(v)
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Debug = strings.EqualFold(v, "debug")
	}
	if v, ok := get("PROXY_URL", "proxy_url"); ok {
		cfg.ProxyURL = v
	}
}

// ApplyDefaults fills every unset field with its default.
func (cfg *Config) ApplyDefaults() {
	if cfg == nil {
		return
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Environment == "" {
		cfg.Environment = EnvironmentDevelopment
	}
	if cfg.GitPortEndpoint == "" {
		cfg.GitPortEndpoint = DefaultGitPortEndpoint
	}
	cfg.GitPortEndpoint = strings.TrimRight(cfg.GitPortEndpoint, "/")
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = DefaultGitHubAPIBaseURL
	}
	if cfg.GitHub.OAuthBaseURL == "" {
		cfg.GitHub.OAuthBaseURL = DefaultGitHubOAuthBaseURL
	}
	if cfg.GitHub.StatusURL == "" {
		cfg.GitHub.StatusURL = DefaultGitHubStatusURL
	}
	if cfg.RateLimit.GitHubMaxPerMinute <= 0 {
		cfg.RateLimit.GitHubMaxPerMinute = DefaultGitHubRateMax
	}
	if cfg.RateLimit.GeneralPerMinute <= 0 {
		cfg.RateLimit.GeneralPerMinute = DefaultGeneralRequestsPerMin
	}
	if cfg.RateLimit.AuthPerWindow <= 0 {
		cfg.RateLimit.AuthPerWindow = DefaultAuthRequestsPerWindow
	}
	if cfg.RateLimit.AuthWindowMinutes <= 0 {
		cfg.RateLimit.AuthWindowMinutes = DefaultAuthWindowMinutes
	}
	if cfg.ClientTimeoutMinutes <= 0 {
		cfg.ClientTimeoutMinutes = DefaultClientTimeoutMinutes
	}
	if cfg.SessionTimeoutMinutes <= 0 {
		cfg.SessionTimeoutMinutes = DefaultSessionTimeoutMinutes
	}
	if cfg.Status.Status == "" {
		cfg.Status.Status = DefaultServiceStatus
	}
	if cfg.Status.Reason == "" {
		cfg.Status.Reason = DefaultServiceReason
	}
}

// Validate returns warnings for settings that leave the server only partly
// usable, and an error for settings it cannot start with.
func (cfg *Config) Validate() ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var warnings []string
	if cfg.GitHub.ClientID == "" {
		warnings = append(warnings, "client_id is not set; GitHub login will fail")
	}
	if cfg.GitHub.ClientSecret == "" {
		warnings = append(warnings, "client_secret is not set; token exchange and logoff will fail")
	}
	if cfg.GitHub.OrgName == "" {
		warnings = append(warnings, "GITHUB_ORG_NAME is not set; branch operations have no organization")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return warnings, fmt.Errorf("invalid port %d", cfg.Port)
	}
	hasKey := cfg.TLS.PrivateKeyPath != ""
	hasCert := cfg.TLS.CertificatePath != ""
	if hasKey != hasCert {
		return warnings, errors.New("privateKeyPath and certificatePath must be set together")
	}
	if !hasKey {
		warnings = append(warnings, "no TLS key or certificate configured; serving plain HTTP")
	}
	return warnings, nil
}

// IsProduction reports whether the server runs with production hardening.
func (cfg *Config) IsProduction() bool {
	return cfg != nil && strings.EqualFold(cfg.Environment, EnvironmentProduction)
}

// TLSEnabled reports whether both TLS paths are configured.
func (cfg *Config) TLSEnabled() bool {
	return cfg != nil && cfg.TLS.PrivateKeyPath != "" && cfg.TLS.CertificatePath != ""
}

// AllowedOrigins returns the CORS allow list for the current environment.
func (cfg *Config) AllowedOrigins() []string {
	if cfg == nil {
		return nil
	}
	origins := []string{
		cfg.GitPortEndpoint,
		"https://github.com",
		"https://api.github.com",
		"https://www.githubstatus.com",
	}
	if !cfg.IsProduction() {
		port := strconv.Itoa(cfg.Port)
		origins = append(origins,
			"http://localhost:"+port,
			"https://localhost:"+port,
			"http://127.0.0.1:"+port,
			"https://127.0.0.1:"+port,
		)
	}
	for _, origin := range cfg.CORS.ExtraOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
