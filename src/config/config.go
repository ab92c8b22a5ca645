package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"
)

// validName matches alphanumeric, hyphens, and single underscores.
// Double underscores are reserved as the namespace separator.
var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Config is the top-level gateway configuration loaded from JSON.
type Config struct {
	Upstream     UpstreamConfig     `json:"upstream"`
	Downstream   []DownstreamConfig `json:"downstream"`
	Safety       SafetyConfig       `json:"safety"`
	Sanitization SanitizationConfig `json:"sanitization"`
}

// UpstreamConfig controls how LLM clients connect to the gateway.
type UpstreamConfig struct {
	Transport string     `json:"transport"` // "stdio" or "http"
	HTTP      HTTPConfig `json:"http"`
}

// HTTPConfig holds HTTP listener settings.
type HTTPConfig struct {
	Addr string `json:"addr"` // e.g. ":8080"
	Path string `json:"path"` // e.g. "/mcp"
}

// DownstreamConfig defines a single downstream MCP server.
type DownstreamConfig struct {
	Name         string              `json:"name"`
	Transport    string              `json:"transport"` // "stdio" or "http"
	Command      []string            `json:"command,omitempty"`
	URL          string              `json:"url,omitempty"`
	Sanitization *SanitizationConfig `json:"sanitization,omitempty"`
}

// SafetyConfig sets the per-category detection policies. Policies are
// "ignore", "warn", "block" or "sanitize"; an empty string takes the
// default.
type SafetyConfig struct {
	InputPolicy       string   `json:"inputValidationPolicy,omitempty"`
	PromptPolicy      string   `json:"promptInjectionPolicy,omitempty"`
	SSRFPolicy        string   `json:"ssrfPolicy,omitempty"`
	LeakPolicy        string   `json:"leakDetectionPolicy,omitempty"`
	PromptSensitivity *float64 `json:"promptSensitivity,omitempty"`
	MaxInputLength    *int     `json:"maxInputLength,omitempty"`
	AllowPrivateIPs   *bool    `json:"allowPrivateIPs,omitempty"`
	BlockedCIDRRanges []string `json:"blockedCidrRanges,omitempty"`
}

// SanitizationConfig controls the response pipeline. At the root level
// it provides global defaults; per-downstream, non-nil fields override
// the global.
type SanitizationConfig struct {
	MaxResponseChars           *int  `json:"maxResponseChars,omitempty"`
	EnableInvisibleTextRemoval *bool `json:"enableInvisibleTextRemoval,omitempty"`
	EnableInjectionDetection   *bool `json:"enableInjectionDetection,omitempty"`
	EnableLeakRedaction        *bool `json:"enableLeakRedaction,omitempty"`
	EnableBoundaryInjection    *bool `json:"enableBoundaryInjection,omitempty"`
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	PolicyIgnore   = "ignore"
	PolicyWarn     = "warn"
	PolicyBlock    = "block"
	PolicySanitize = "sanitize"

	DefaultMaxResponseChars  = 16000
	DefaultPromptSensitivity = 0.15
	DefaultMaxInputLength    = 100_000
	DefaultHTTPAddr          = ":8080"
	DefaultHTTPPath          = "/mcp"
)

// Load reads and parses a JSON config file, applies defaults, and validates.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Upstream.Transport == "" {
		cfg.Upstream.Transport = TransportStdio
	}
	if cfg.Upstream.HTTP.Addr == "" {
		cfg.Upstream.HTTP.Addr = DefaultHTTPAddr
	}
	if cfg.Upstream.HTTP.Path == "" {
		cfg.Upstream.HTTP.Path = DefaultHTTPPath
	}

	if cfg.Safety.InputPolicy == "" {
		cfg.Safety.InputPolicy = PolicyWarn
	}
	if cfg.Safety.PromptPolicy == "" {
		cfg.Safety.PromptPolicy = PolicyBlock
	}
	if cfg.Safety.SSRFPolicy == "" {
		cfg.Safety.SSRFPolicy = PolicyBlock
	}
	if cfg.Safety.LeakPolicy == "" {
		cfg.Safety.LeakPolicy = PolicyWarn
	}
	if cfg.Safety.PromptSensitivity == nil {
		cfg.Safety.PromptSensitivity = floatPtr(DefaultPromptSensitivity)
	}
	if cfg.Safety.MaxInputLength == nil {
		cfg.Safety.MaxInputLength = intPtr(DefaultMaxInputLength)
	}
	if cfg.Safety.AllowPrivateIPs == nil {
		cfg.Safety.AllowPrivateIPs = boolPtr(false)
	}

	if cfg.Sanitization.MaxResponseChars == nil {
		cfg.Sanitization.MaxResponseChars = intPtr(DefaultMaxResponseChars)
	}
	if cfg.Sanitization.EnableInvisibleTextRemoval == nil {
		cfg.Sanitization.EnableInvisibleTextRemoval = boolPtr(true)
	}
	if cfg.Sanitization.EnableInjectionDetection == nil {
		cfg.Sanitization.EnableInjectionDetection = boolPtr(true)
	}
	if cfg.Sanitization.EnableLeakRedaction == nil {
		cfg.Sanitization.EnableLeakRedaction = boolPtr(true)
	}
	if cfg.Sanitization.EnableBoundaryInjection == nil {
		cfg.Sanitization.EnableBoundaryInjection = boolPtr(true)
	}
}

func validate(cfg Config) error {
	if cfg.Upstream.Transport != TransportStdio && cfg.Upstream.Transport != TransportHTTP {
		return fmt.Errorf("upstream transport must be %q or %q, got %q",
			TransportStdio, TransportHTTP, cfg.Upstream.Transport)
	}

	if len(cfg.Downstream) == 0 {
		return fmt.Errorf("at least one downstream server is required")
	}

	names := make(map[string]struct{}, len(cfg.Downstream))
	for i, ds := range cfg.Downstream {
		if ds.Name == "" {
			return fmt.Errorf("downstream[%d]: name is required", i)
		}
		if !validName.MatchString(ds.Name) {
			return fmt.Errorf("downstream[%d]: name %q must match %s", i, ds.Name, validName.String())
		}
		if strings.Contains(ds.Name, "__") {
			return fmt.Errorf("downstream[%d]: name %q must not contain \"__\" (reserved separator)", i, ds.Name)
		}
		if _, exists := names[ds.Name]; exists {
			return fmt.Errorf("downstream[%d]: duplicate name %q", i, ds.Name)
		}
		names[ds.Name] = struct{}{}

		if ds.Transport != TransportStdio && ds.Transport != TransportHTTP {
			return fmt.Errorf("downstream[%d] (%s): transport must be %q or %q, got %q",
				i, ds.Name, TransportStdio, TransportHTTP, ds.Transport)
		}

		if ds.Transport == TransportStdio && len(ds.Command) == 0 {
			return fmt.Errorf("downstream[%d] (%s): command is required for stdio transport", i, ds.Name)
		}

		if ds.Transport == TransportHTTP && ds.URL == "" {
			return fmt.Errorf("downstream[%d] (%s): url is required for http transport", i, ds.Name)
		}
	}

	for name, policy := range map[string]string{
		"inputValidationPolicy": cfg.Safety.InputPolicy,
		"promptInjectionPolicy": cfg.Safety.PromptPolicy,
		"ssrfPolicy":            cfg.Safety.SSRFPolicy,
		"leakDetectionPolicy":   cfg.Safety.LeakPolicy,
	} {
		switch policy {
		case PolicyIgnore, PolicyWarn, PolicyBlock, PolicySanitize:
		default:
			return fmt.Errorf("safety.%s: unknown policy %q", name, policy)
		}
	}

	for i, cidr := range cfg.Safety.BlockedCIDRRanges {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("safety.blockedCidrRanges[%d]: invalid CIDR %q: %w", i, cidr, err)
		}
	}

	return nil
}

// Merge returns a SanitizationConfig with per-server overrides applied
// on top of global defaults. Fields that are nil in the override use
// the global value.
func Merge(global, override *SanitizationConfig) SanitizationConfig {
	if override == nil {
		return *global
	}

	merged := *global

	if override.MaxResponseChars != nil {
		merged.MaxResponseChars = override.MaxResponseChars
	}
	if override.EnableInvisibleTextRemoval != nil {
		merged.EnableInvisibleTextRemoval = override.EnableInvisibleTextRemoval
	}
	if override.EnableInjectionDetection != nil {
		merged.EnableInjectionDetection = override.EnableInjectionDetection
	}
	if override.EnableLeakRedaction != nil {
		merged.EnableLeakRedaction = override.EnableLeakRedaction
	}
	if override.EnableBoundaryInjection != nil {
		merged.EnableBoundaryInjection = override.EnableBoundaryInjection
	}

	return merged
}

func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
