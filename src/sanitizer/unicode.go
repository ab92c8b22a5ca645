package sanitizer

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// UnicodeScanner normalizes text to NFKC and strips invisible
// characters. Zero-width joiners, directional overrides and private-use
// codepoints are a common smuggling channel for instructions the user
// never sees.
type UnicodeScanner struct{}

func (UnicodeScanner) Name() string { return "unicode" }

func (u UnicodeScanner) Scan(_ context.Context, content string) (ScanResult, error) {
	cleaned, stripped := stripInvisible(norm.NFKC.String(content))

	if stripped == 0 && cleaned == content {
		return ScanResult{Verdict: VerdictPass, Content: content, Scanner: u.Name()}, nil
	}

	var findings []string
	if stripped > 0 {
		findings = append(findings, "invisible or control characters removed")
	}

	return ScanResult{
		Verdict:  VerdictModify,
		Content:  cleaned,
		Findings: findings,
		Scanner:  u.Name(),
	}, nil
}

// stripInvisible drops runes in the Cf, Co and Cc categories, keeping
// the ordinary whitespace characters text legitimately contains.
func stripInvisible(s string) (string, int) {
	var b strings.Builder
	b.Grow(len(s))

	removed := 0
	for _, r := range s {
		switch r {
		case '\n', '\t', '\r', ' ':
			b.WriteRune(r)
			continue
		}
		if unicode.In(r, unicode.Cf, unicode.Co, unicode.Cc) {
			removed++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), removed
}
