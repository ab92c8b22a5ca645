// Package leak detects credential material (API keys, tokens, private
// keys) in text and outbound requests, and can redact it. It is the
// exfiltration counterpart to the injection guard: the guard stops
// hostile instructions coming in, this package stops secrets going out.
package leak

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Severity ranks how damaging a leaked match is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Score maps a severity onto the [0,1] risk scale shared with the
// injection guard.
func (s Severity) Score() float64 {
	switch s {
	case SeverityLow:
		return 0.25
	case SeverityMedium:
		return 0.5
	case SeverityHigh:
		return 0.75
	case SeverityCritical:
		return 1.0
	default:
		return 0
	}
}

type leakPattern struct {
	name     string
	severity Severity
	re       *regexp.Regexp
}

// leakPatterns is the fixed severity-tagged credential table. Order
// matters for redaction: more specific prefixes (sk-ant-) come before
// the general ones (sk-) they would otherwise shadow.
var leakPatterns = []leakPattern{
	{"private_key_block", SeverityCritical, regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----`)},
	{"anthropic_api_key", SeverityCritical, regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{16,}`)},
	{"openai_api_key", SeverityCritical, regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_-]{20,}`)},
	{"aws_access_key", SeverityCritical, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"github_token", SeverityCritical, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"google_api_key", SeverityHigh, regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`)},
	{"slack_token", SeverityHigh, regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"bearer_token", SeverityMedium, regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._+/=-]{16,}`)},
	{"generic_credential", SeverityMedium, regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|password|access[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9._+/-]{8,}`)},
}

// exfilParams flags URL query parameters whose names imply credential
// exfiltration even when the value matches no credential shape.
var exfilParams = regexp.MustCompile(`(?i)[?&](secret|token|key|password|api_key|credential|auth|session_id|private_key)=`)

// Match is a single detected credential.
type Match struct {
	Name     string
	Severity Severity
}

// Report lists everything one scan found.
type Report struct {
	Matches []Match
}

// Clean reports whether nothing was detected.
func (r Report) Clean() bool { return len(r.Matches) == 0 }

// MaxSeverity returns the highest severity among the matches; ok is
// false for a clean report.
func (r Report) MaxSeverity() (max Severity, ok bool) {
	for _, m := range r.Matches {
		ok = true
		if m.Severity > max {
			max = m.Severity
		}
	}
	return max, ok
}

// ShouldBlock reports whether any match is critical.
func (r Report) ShouldBlock() bool {
	for _, m := range r.Matches {
		if m.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Detector scans text against the fixed credential table. The zero
// value is not usable; create with NewDetector. Detectors are stateless
// and safe for concurrent use.
type Detector struct{}

// NewDetector returns a detector over the built-in credential table.
func NewDetector() *Detector { return &Detector{} }

// Scan reports every credential pattern found in content.
func (d *Detector) Scan(content string) Report {
	var report Report
	for _, p := range leakPatterns {
		if p.re.MatchString(content) {
			report.Matches = append(report.Matches, Match{Name: p.name, Severity: p.severity})
		}
	}
	return report
}

// Redact replaces each matched credential with a [REDACTED:<name>]
// placeholder. Unmatched content is returned unchanged.
func (d *Detector) Redact(content string) string {
	out := content
	for _, p := range leakPatterns {
		out = p.re.ReplaceAllString(out, "[REDACTED:"+p.name+"]")
	}
	return out
}

// ScanRequest checks an outbound HTTP request for credential
// exfiltration: suspicious query parameter names, credential values in
// the URL, non-standard headers, or the body. It returns a non-nil
// error describing the first finding.
func (d *Detector) ScanRequest(rawURL string, headers http.Header, body []byte) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("unparseable request URL: %w", err)
	}

	if exfilParams.MatchString(rawURL) {
		return fmt.Errorf("credential-shaped query parameter in URL %q", u.Host)
	}
	if report := d.Scan(rawURL); !report.Clean() {
		return fmt.Errorf("credential in request URL: %s", report.Matches[0].Name)
	}

	for name, values := range headers {
		// Authorization is how credentials are supposed to travel;
		// flag them anywhere else.
		if http.CanonicalHeaderKey(name) == "Authorization" {
			continue
		}
		for _, v := range values {
			if report := d.Scan(v); !report.Clean() {
				return fmt.Errorf("credential in header %s: %s", name, report.Matches[0].Name)
			}
		}
	}

	if len(body) > 0 {
		if report := d.Scan(string(body)); report.ShouldBlock() {
			return fmt.Errorf("credential in request body: %s", firstCritical(report))
		}
	}
	return nil
}

// firstCritical names the first critical match in a blocking report.
// The body check only errors on critical findings, so the message must
// name one even when lower-severity matches precede it.
func firstCritical(r Report) string {
	for _, m := range r.Matches {
		if m.Severity == SeverityCritical {
			return m.Name
		}
	}
	return ""
}

// Describe renders a report's matches for logs and error messages.
func Describe(r Report) string {
	parts := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		parts = append(parts, fmt.Sprintf("%s (%s)", m.Name, m.Severity))
	}
	return strings.Join(parts, ", ")
}
