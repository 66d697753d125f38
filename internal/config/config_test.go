package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadConfigOptionalMissingFile(t *testing.T) {
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("LoadConfigOptional returned error: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.RateLimit.GitHubMaxPerMinute != DefaultGitHubRateMax {
		t.Fatalf("github max = %d, want %d", cfg.RateLimit.GitHubMaxPerMinute, DefaultGitHubRateMax)
	}
	if cfg.ClientTimeoutMinutes != 25 || cfg.SessionTimeoutMinutes != 30 {
		t.Fatalf("timeouts = %d/%d, want 25/30", cfg.ClientTimeoutMinutes, cfg.SessionTimeoutMinutes)
	}
	if cfg.Status.Status != "up" || cfg.Status.Reason != "Service is operational" {
		t.Fatalf("status = %+v", cfg.Status)
	}
}

func TestLoadConfigRequiresFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing required config file")
	}
}

func TestLoadConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
port: 8443
environment: production
github:
  client-id: abc
  org-name: acme
rate-limit:
  github-max-per-minute: 42
cors:
  enforce: true
  extra-origins:
    - https://captain.example.com/
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != 8443 || cfg.GitHub.ClientID != "abc" || cfg.GitHub.OrgName != "acme" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RateLimit.GitHubMaxPerMinute != 42 {
		t.Fatalf("github max = %d, want 42", cfg.RateLimit.GitHubMaxPerMinute)
	}
	if !cfg.IsProduction() || !cfg.CORS.Enforce {
		t.Fatalf("expected production with enforced CORS")
	}
	origins := cfg.AllowedOrigins()
	if !slices.Contains(origins, "https://captain.example.com") {
		t.Fatalf("extra origin missing from %v", origins)
	}
	if slices.Contains(origins, "http://localhost:8443") {
		t.Fatalf("production origins must not include localhost: %v", origins)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"client_id":         "id-1",
		"client_secret":     "secret-1",
		"GITHUB_ORG_NAME":   "org-1",
		"PORT":              "4000",
		"GIT_PORT_ENDPOINT": "https://captain.local:4000/",
		"privateKeyPath":    "/keys/key.pem",
		"certificatePath":   "/keys/cert.pem",
		"TIMEOUT_MINUTES":   "10",
		"RATE_LIMIT_MAX":    "50",
		"NODE_ENV":          "Production",
		"LOG_LEVEL":         "debug",
		"PROXY_URL":         " ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := &Config{ProxyURL: "socks5://keep"}
	cfg.ApplyEnvOverrides(lookup)
	cfg.ApplyDefaults()

	if cfg.GitHub.ClientID != "id-1" || cfg.GitHub.ClientSecret != "secret-1" || cfg.GitHub.OrgName != "org-1" {
		t.Fatalf("github overrides not applied: %+v", cfg.GitHub)
	}
	if cfg.Port != 4000 || cfg.ClientTimeoutMinutes != 10 || cfg.RateLimit.GitHubMaxPerMinute != 50 {
		t.Fatalf("numeric overrides not applied: %+v", cfg)
	}
	if cfg.GitPortEndpoint != "https://captain.local:4000" {
		t.Fatalf("endpoint = %q", cfg.GitPortEndpoint)
	}
	if !cfg.IsProduction() || !cfg.Debug || !cfg.TLSEnabled() {
		t.Fatalf("expected production, debug and TLS: %+v", cfg)
	}
	if cfg.ProxyURL != "socks5://keep" {
		t.Fatalf("blank env must not override proxy-url, got %q", cfg.ProxyURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantErr     bool
		minWarnings int
	}{
		{
			name: "Complete",
			cfg: Config{Port: 3000, GitHub: GitHubConfig{ClientID: "a", ClientSecret: "b", OrgName: "c"},
				TLS: TLSConfig{PrivateKeyPath: "k", CertificatePath: "c"}},
		},
		{name: "Missing credentials", cfg: Config{Port: 3000}, minWarnings: 4},
		{name: "Half TLS", cfg: Config{Port: 3000, TLS: TLSConfig{PrivateKeyPath: "k"}}, wantErr: true},
		{name: "Bad port", cfg: Config{Port: 70000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(warnings) < tt.minWarnings {
				t.Fatalf("warnings = %v, want at least %d", warnings, tt.minWarnings)
			}
			if tt.minWarnings == 0 && !tt.wantErr && len(warnings) != 0 {
				t.Fatalf("unexpected warnings %v", warnings)
			}
		})
	}
}
