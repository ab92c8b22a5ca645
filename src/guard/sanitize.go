package guard

import "strings"

// redacted replaces literal tool-call JSON key prefixes during
// sanitization.
const redacted = "[SANITIZED]"

// Sanitize rewrites the most dangerous literal substrings in content.
// It is a no-op unless the guard action is ActionSanitize.
//
// This is deliberately conservative string surgery, not parsing: it
// escapes command-substitution openers and backticks and redacts
// literal tool-call payload prefixes. It does not neutralize everything
// Scan can detect. Sanitize is idempotent: already-escaped sequences
// are left alone.
func (g *Guard) Sanitize(content string) string {
	if g.action != ActionSanitize {
		return content
	}

	out := escapeUnescaped(content, "$(")
	out = escapeUnescaped(out, "`")
	out = strings.ReplaceAll(out, `{"tool_calls":`, redacted)
	out = strings.ReplaceAll(out, `{"function_call":`, redacted)
	return out
}

// escapeUnescaped prefixes occurrences of token with a backslash,
// skipping occurrences that already have one so repeated sanitization
// is stable.
func escapeUnescaped(s, token string) string {
	if !strings.Contains(s, token) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], token) {
			if i == 0 || s[i-1] != '\\' {
				b.WriteByte('\\')
			}
			b.WriteString(token)
			i += len(token)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
