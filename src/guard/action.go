package guard

import "fmt"

// Action is what a Guard does when suspicious content is detected.
type Action int

const (
	// ActionWarn reports suspicious content but never blocks.
	ActionWarn Action = iota
	// ActionBlock blocks content whose normalized score meets the
	// sensitivity threshold.
	ActionBlock
	// ActionSanitize leaves Scan verdicts untouched but enables the
	// Sanitize rewrite path.
	ActionSanitize
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionBlock:
		return "block"
	case ActionSanitize:
		return "sanitize"
	default:
		return "unknown"
	}
}

// ParseAction converts a config string into an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "warn":
		return ActionWarn, nil
	case "block":
		return ActionBlock, nil
	case "sanitize":
		return ActionSanitize, nil
	default:
		return ActionWarn, fmt.Errorf("unknown guard action %q (want warn, block, or sanitize)", s)
	}
}
