// Package ssrf validates URLs before outbound HTTP requests are made on
// behalf of model output, blocking access to private networks,
// localhost, and cloud metadata endpoints.
package ssrf

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
)

// defaultBlockedRanges covers private, loopback, link-local, and other
// reserved address space.
var defaultBlockedRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"::1/128",
	"169.254.0.0/16",
	"fe80::/10",
	"::ffff:127.0.0.0/104",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
}

// metadataEndpoint is the AWS/GCP/Azure instance metadata address. It
// stays blocked even when private IPs are allowed.
const metadataEndpoint = "169.254.169.254/32"

// Resolver turns a hostname into addresses. Injected so tests run
// without DNS.
type Resolver func(host string) ([]netip.Addr, error)

// Validator checks URLs against a set of blocked CIDR ranges.
type Validator struct {
	blocked []netip.Prefix
	resolve Resolver
}

// New creates a validator. With allowPrivateIPs true only the cloud
// metadata endpoint is blocked, for gateways deployed inside trusted
// networks.
func New(allowPrivateIPs bool) *Validator {
	ranges := defaultBlockedRanges
	if allowPrivateIPs {
		ranges = []string{metadataEndpoint}
	}

	v := &Validator{resolve: lookupHost}
	for _, cidr := range ranges {
		// Built-in ranges are constants; a parse failure is a
		// programming error.
		v.blocked = append(v.blocked, netip.MustParsePrefix(cidr))
	}
	return v
}

// WithResolver replaces the DNS resolver and returns the validator.
func (v *Validator) WithResolver(r Resolver) *Validator {
	v.resolve = r
	return v
}

// AddBlockedRange blocks an additional CIDR range.
func (v *Validator) AddBlockedRange(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	v.blocked = append(v.blocked, p)
	return nil
}

// ValidateURL rejects URLs whose scheme is not http(s), whose host is
// non-ASCII (homograph risk), or that resolve to any blocked address.
// IP-literal hosts are checked without resolution.
func (v *Validator) ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed: only http and https", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	for _, r := range host {
		if r > 127 {
			return fmt.Errorf("non-ASCII host %q (possible homograph attack)", host)
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return v.validateAddr(addr)
	}

	addrs, err := v.resolve(host)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("host %q resolved to no addresses", host)
	}
	for _, addr := range addrs {
		if err := v.validateAddr(addr); err != nil {
			return err
		}
	}
	return nil
}

// Blocked reports whether ValidateURL would reject the URL.
func (v *Validator) Blocked(raw string) bool {
	return v.ValidateURL(raw) != nil
}

func (v *Validator) validateAddr(addr netip.Addr) error {
	for _, p := range v.blocked {
		if p.Contains(addr) || p.Contains(addr.Unmap()) {
			return fmt.Errorf("address %s is blocked (matches %s)", addr, p)
		}
	}
	return nil
}

func lookupHost(host string) ([]netip.Addr, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}
