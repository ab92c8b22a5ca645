package guard

// Result is the verdict of a single scan. It is a plain value with no
// lifecycle beyond the call that produced it.
//
// Invariants: Safe is true iff Patterns is empty; Blocked implies
// Suspicious; Score depends only on the content and the fixed category
// weight table, never on the configured action or sensitivity.
type Result struct {
	// Safe is true when no category matched.
	Safe bool
	// Suspicious is true when any category matched.
	Suspicious bool
	// Blocked is true when the guard action is ActionBlock and the
	// normalized score met the sensitivity threshold.
	Blocked bool
	// Patterns holds the matched category labels in detection order.
	Patterns []string
	// Score is the normalized aggregate risk in [0,1].
	Score float64
	// Message is a human-readable summary, set only when Blocked.
	Message string
}
