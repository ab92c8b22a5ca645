package ssrf

import (
	"fmt"
	"net/netip"
	"testing"
)

// staticResolver maps hostnames to fixed addresses.
func staticResolver(hosts map[string][]string) Resolver {
	return func(host string) ([]netip.Addr, error) {
		raw, ok := hosts[host]
		if !ok {
			return nil, fmt.Errorf("no such host %q", host)
		}
		var addrs []netip.Addr
		for _, r := range raw {
			addrs = append(addrs, netip.MustParseAddr(r))
		}
		return addrs, nil
	}
}

func TestValidateURL_BlocksPrivateLiterals(t *testing.T) {
	v := New(false)

	for _, raw := range []string{
		"http://192.168.1.1/",
		"http://10.0.0.1/",
		"http://172.16.0.1/",
		"http://127.0.0.1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
	} {
		if !v.Blocked(raw) {
			t.Errorf("Blocked(%q) = false, want true", raw)
		}
	}
}

func TestValidateURL_BlocksResolvedPrivate(t *testing.T) {
	v := New(false).WithResolver(staticResolver(map[string][]string{
		"internal.corp":  {"10.1.2.3"},
		"localhost":      {"127.0.0.1", "::1"},
		"mixed.example":  {"93.184.216.34", "192.168.0.9"},
		"public.example": {"93.184.216.34"},
	}))

	for _, raw := range []string{
		"http://internal.corp/",
		"http://localhost/",
		"http://mixed.example/", // one private address poisons the set
	} {
		if !v.Blocked(raw) {
			t.Errorf("Blocked(%q) = false, want true", raw)
		}
	}

	if v.Blocked("https://public.example/path") {
		t.Error("public host should be allowed")
	}
}

func TestValidateURL_SchemeAndHostRules(t *testing.T) {
	v := New(false)

	tests := []struct {
		name string
		raw  string
	}{
		{"file scheme", "file:///etc/passwd"},
		{"gopher scheme", "gopher://example.com/"},
		{"no host", "http:///path-only"},
		{"non-ascii host", "http://exаmple.com/"}, // Cyrillic а
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.ValidateURL(tt.raw); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.raw)
			}
		})
	}
}

func TestValidateURL_MappedLoopback(t *testing.T) {
	v := New(false)
	if !v.Blocked("http://[::ffff:127.0.0.1]/") {
		t.Error("IPv4-mapped loopback should be blocked")
	}
}

func TestAllowPrivateIPs_KeepsMetadataBlocked(t *testing.T) {
	v := New(true)

	if v.Blocked("http://192.168.1.1/") {
		t.Error("private range should be allowed in allow-private mode")
	}
	if !v.Blocked("http://169.254.169.254/latest/meta-data/") {
		t.Error("metadata endpoint must stay blocked in allow-private mode")
	}
}

func TestAddBlockedRange(t *testing.T) {
	v := New(false)

	if err := v.AddBlockedRange("203.0.114.0/24"); err != nil {
		t.Fatalf("AddBlockedRange: %v", err)
	}
	if !v.Blocked("http://203.0.114.7/") {
		t.Error("custom range should block")
	}

	if err := v.AddBlockedRange("not-a-cidr"); err == nil {
		t.Error("expected error for malformed CIDR")
	}
}
