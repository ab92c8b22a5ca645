// Package guard detects prompt injection in untrusted text such as
// chat messages and tool-call arguments before it reaches an LLM or a
// command executor. Six independent pattern categories each contribute
// a fixed evidence weight; the weights are summed and normalized into a
// single score in [0,1], which is compared against a configured
// sensitivity threshold to decide whether to block.
//
// A Guard is immutable after construction and safe for concurrent use.
// Scanning performs no I/O and is deterministic: the same content always
// produces the same Result.
package guard

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxScanBytes bounds how much input a single scan will match against.
// Content beyond this limit is truncated before matching. The cap keeps
// worst-case scan cost bounded on adversarially long or repetitive
// input; callers that need the full text inspected should chunk it.
const MaxScanBytes = 100_000

// maxRawScore is the divisor used to normalize the summed category
// weights. It is a fixed design constant (one unit of weight per
// category), not derived from how many categories fired: a single
// strong match (e.g. jailbreak at 0.95) normalizes to ~0.158, which is
// why the calibrated sensitivity defaults sit in the 0.1–0.2 range.
// Changing it breaks threshold compatibility.
const maxRawScore = 6.0

// Guard scans text for prompt injection with configurable sensitivity.
type Guard struct {
	action      Action
	sensitivity float64
}

// New creates a Guard. sensitivity is the normalized-score threshold at
// or above which a Block-action guard blocks; it is clamped to [0,1].
// Recommended values: 0.15 for blocking, 0.1 for warn-only setups.
func New(action Action, sensitivity float64) *Guard {
	if sensitivity < 0 {
		sensitivity = 0
	} else if sensitivity > 1 {
		sensitivity = 1
	}
	return &Guard{action: action, sensitivity: sensitivity}
}

// Action returns the configured action.
func (g *Guard) Action() Action { return g.action }

// Sensitivity returns the clamped blocking threshold.
func (g *Guard) Sensitivity() float64 { return g.sensitivity }

// Scan inspects content for prompt injection patterns.
//
// The verdict is observational regardless of the configured action:
// ActionSanitize does not rewrite anything here (use Sanitize for
// that), and ActionWarn never blocks. Only ActionBlock combined with a
// normalized score at or above the sensitivity threshold produces a
// blocked Result.
func (g *Guard) Scan(content string) Result {
	content = truncate(content)

	var labels []string
	total := 0.0
	for _, c := range categories {
		weight, matched := c.check(content)
		total += weight
		labels = append(labels, matched...)
	}

	if len(labels) == 0 {
		return Result{Safe: true}
	}

	score := total / maxRawScore
	if score > 1 {
		score = 1
	}

	if g.action == ActionBlock && score >= g.sensitivity {
		msg := fmt.Sprintf("Potential prompt injection detected (score: %.2f): %s",
			score, strings.Join(labels, ", "))
		return Result{
			Suspicious: true,
			Blocked:    true,
			Patterns:   labels,
			Score:      score,
			Message:    msg,
		}
	}

	return Result{
		Suspicious: true,
		Patterns:   labels,
		Score:      score,
	}
}

// truncate cuts content to MaxScanBytes, backing off to the previous
// rune boundary so matching never sees a torn rune.
func truncate(content string) string {
	if len(content) <= MaxScanBytes {
		return content
	}
	end := MaxScanBytes
	for end > 0 && !utf8.RuneStart(content[end]) {
		end--
	}
	return content[:end]
}
