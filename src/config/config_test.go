package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	cfg := `{
		"upstream": {"transport": "stdio"},
		"downstream": [
			{"name": "fs", "transport": "stdio", "command": ["echo", "hello"]}
		]
	}`

	path := writeTemp(t, cfg)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Upstream.Transport != TransportStdio {
		t.Errorf("upstream transport = %q, want %q", got.Upstream.Transport, TransportStdio)
	}
	if len(got.Downstream) != 1 {
		t.Fatalf("downstream count = %d, want 1", len(got.Downstream))
	}
	if got.Downstream[0].Name != "fs" {
		t.Errorf("downstream[0].name = %q, want %q", got.Downstream[0].Name, "fs")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a", "transport": "stdio", "command": ["x"]}
		]
	}`

	path := writeTemp(t, cfg)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Upstream.Transport != TransportStdio {
		t.Errorf("default upstream transport = %q, want %q", got.Upstream.Transport, TransportStdio)
	}
	if got.Upstream.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("default http addr = %q, want %q", got.Upstream.HTTP.Addr, DefaultHTTPAddr)
	}
	if got.Safety.PromptPolicy != PolicyBlock {
		t.Errorf("default promptInjectionPolicy = %q, want %q", got.Safety.PromptPolicy, PolicyBlock)
	}
	if got.Safety.SSRFPolicy != PolicyBlock {
		t.Errorf("default ssrfPolicy = %q, want %q", got.Safety.SSRFPolicy, PolicyBlock)
	}
	if got.Safety.InputPolicy != PolicyWarn {
		t.Errorf("default inputValidationPolicy = %q, want %q", got.Safety.InputPolicy, PolicyWarn)
	}
	if *got.Safety.PromptSensitivity != DefaultPromptSensitivity {
		t.Errorf("default promptSensitivity = %v, want %v", *got.Safety.PromptSensitivity, DefaultPromptSensitivity)
	}
	if *got.Safety.MaxInputLength != DefaultMaxInputLength {
		t.Errorf("default maxInputLength = %d, want %d", *got.Safety.MaxInputLength, DefaultMaxInputLength)
	}
	if *got.Safety.AllowPrivateIPs {
		t.Error("default allowPrivateIPs should be false")
	}
	if *got.Sanitization.MaxResponseChars != DefaultMaxResponseChars {
		t.Errorf("default maxResponseChars = %d, want %d", *got.Sanitization.MaxResponseChars, DefaultMaxResponseChars)
	}
	if !*got.Sanitization.EnableInvisibleTextRemoval {
		t.Error("default enableInvisibleTextRemoval should be true")
	}
	if !*got.Sanitization.EnableInjectionDetection {
		t.Error("default enableInjectionDetection should be true")
	}
	if !*got.Sanitization.EnableLeakRedaction {
		t.Error("default enableLeakRedaction should be true")
	}
	if !*got.Sanitization.EnableBoundaryInjection {
		t.Error("default enableBoundaryInjection should be true")
	}
}

func TestLoad_HTTPUpstream(t *testing.T) {
	cfg := `{
		"upstream": {"transport": "http", "http": {"addr": ":9090", "path": "/api"}},
		"downstream": [
			{"name": "a", "transport": "http", "url": "https://example.com/mcp"}
		]
	}`

	path := writeTemp(t, cfg)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Upstream.Transport != TransportHTTP {
		t.Errorf("transport = %q, want %q", got.Upstream.Transport, TransportHTTP)
	}
	if got.Upstream.HTTP.Addr != ":9090" {
		t.Errorf("addr = %q, want %q", got.Upstream.HTTP.Addr, ":9090")
	}
}

func TestLoad_SafetySection(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a", "transport": "stdio", "command": ["x"]}
		],
		"safety": {
			"promptInjectionPolicy": "sanitize",
			"promptSensitivity": 0.5,
			"allowPrivateIPs": true,
			"blockedCidrRanges": ["203.0.113.0/24"]
		}
	}`

	path := writeTemp(t, cfg)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Safety.PromptPolicy != PolicySanitize {
		t.Errorf("promptInjectionPolicy = %q, want %q", got.Safety.PromptPolicy, PolicySanitize)
	}
	if *got.Safety.PromptSensitivity != 0.5 {
		t.Errorf("promptSensitivity = %v, want 0.5", *got.Safety.PromptSensitivity)
	}
	if !*got.Safety.AllowPrivateIPs {
		t.Error("allowPrivateIPs should be true")
	}
	if len(got.Safety.BlockedCIDRRanges) != 1 {
		t.Errorf("blockedCidrRanges = %v, want one entry", got.Safety.BlockedCIDRRanges)
	}
}

func TestLoad_UnknownPolicy(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a", "transport": "stdio", "command": ["x"]}
		],
		"safety": {"promptInjectionPolicy": "quarantine"}
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestLoad_InvalidCIDR(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a", "transport": "stdio", "command": ["x"]}
		],
		"safety": {"blockedCidrRanges": ["not-a-cidr"]}
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
}

func TestLoad_NoDownstream(t *testing.T) {
	cfg := `{"downstream": []}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for empty downstream")
	}
}

func TestLoad_DuplicateNames(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a", "transport": "stdio", "command": ["x"]},
			{"name": "a", "transport": "stdio", "command": ["y"]}
		]
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for duplicate names")
	}
}

func TestLoad_StdioMissingCommand(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a", "transport": "stdio"}
		]
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for stdio without command")
	}
}

func TestLoad_HTTPMissingURL(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a", "transport": "http"}
		]
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for http without url")
	}
}

func TestLoad_InvalidTransport(t *testing.T) {
	cfg := `{
		"upstream": {"transport": "grpc"},
		"downstream": [
			{"name": "a", "transport": "stdio", "command": ["x"]}
		]
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid upstream transport")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeTemp(t, `{not json}`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoad_NameContainsDoubleUnderscore(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "a__b", "transport": "stdio", "command": ["x"]}
		]
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for name containing __")
	}
}

func TestLoad_NameInvalidChars(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "has spaces", "transport": "stdio", "command": ["x"]}
		]
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for name with invalid chars")
	}
}

func TestLoad_NameWithHyphensAndUnderscores(t *testing.T) {
	cfg := `{
		"downstream": [
			{"name": "my-server_1", "transport": "stdio", "command": ["x"]}
		]
	}`
	path := writeTemp(t, cfg)
	_, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error for valid name: %v", err)
	}
}

func TestMerge_NilOverride(t *testing.T) {
	global := SanitizationConfig{
		MaxResponseChars: intPtr(16000),
	}
	merged := Merge(&global, nil)
	if *merged.MaxResponseChars != 16000 {
		t.Errorf("maxResponseChars = %d, want 16000", *merged.MaxResponseChars)
	}
}

func TestMerge_OverrideFields(t *testing.T) {
	global := SanitizationConfig{
		MaxResponseChars:         intPtr(16000),
		EnableInjectionDetection: boolPtr(true),
		EnableBoundaryInjection:  boolPtr(true),
	}
	override := SanitizationConfig{
		MaxResponseChars:        intPtr(8000),
		EnableBoundaryInjection: boolPtr(false),
	}

	merged := Merge(&global, &override)

	if *merged.MaxResponseChars != 8000 {
		t.Errorf("maxResponseChars = %d, want 8000", *merged.MaxResponseChars)
	}
	if !*merged.EnableInjectionDetection {
		t.Error("enableInjectionDetection should remain true from global")
	}
	if *merged.EnableBoundaryInjection {
		t.Error("enableBoundaryInjection should be false from override")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}
