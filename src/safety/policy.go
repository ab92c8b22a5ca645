package safety

import "github.com/guardline/promptguard/src/guard"

// PolicyAction is the enforcement posture for one defense category.
type PolicyAction int

const (
	// PolicyIgnore disables the category entirely.
	PolicyIgnore PolicyAction = iota
	// PolicyWarn logs detections but allows the content.
	PolicyWarn
	// PolicyBlock rejects the content with an error.
	PolicyBlock
	// PolicySanitize rewrites the content and allows the result.
	PolicySanitize
)

func (a PolicyAction) String() string {
	switch a {
	case PolicyIgnore:
		return "ignore"
	case PolicyWarn:
		return "warn"
	case PolicyBlock:
		return "block"
	case PolicySanitize:
		return "sanitize"
	default:
		return "unknown"
	}
}

// ParsePolicyAction maps a config string onto a PolicyAction. Unknown
// values fall back to warn, the safe observable default.
func ParsePolicyAction(s string) PolicyAction {
	switch s {
	case "ignore":
		return PolicyIgnore
	case "warn":
		return PolicyWarn
	case "block":
		return PolicyBlock
	case "sanitize":
		return PolicySanitize
	default:
		return PolicyWarn
	}
}

// guardAction converts a policy into the injection guard's action space
// (which has no ignore).
func (a PolicyAction) guardAction() guard.Action {
	switch a {
	case PolicyBlock:
		return guard.ActionBlock
	case PolicySanitize:
		return guard.ActionSanitize
	default:
		return guard.ActionWarn
	}
}

// Category names one defense family.
type Category string

const (
	CategoryInputValidation Category = "input_validation"
	CategoryPromptInjection Category = "prompt_injection"
	CategorySSRF            Category = "ssrf"
	CategoryLeakDetection   Category = "leak_detection"
)

// Result is the outcome of one defense check.
type Result struct {
	// Safe is false when the category detected something and the
	// policy treats it as unsafe.
	Safe bool
	// Category that produced this result.
	Category Category
	// Action the policy engine took.
	Action PolicyAction
	// Details are pattern names or reasons, empty when Safe.
	Details []string
	// Score is the category's risk estimate in [0,1].
	Score float64
	// Sanitized holds rewritten content when a sanitize policy
	// produced one; empty otherwise.
	Sanitized string
}

func safeResult(c Category) Result {
	return Result{Safe: true, Category: c, Action: PolicyIgnore}
}

func detectedResult(c Category, action PolicyAction, details []string, score float64) Result {
	return Result{
		Safe:     action != PolicyBlock,
		Category: c,
		Action:   action,
		Details:  details,
		Score:    score,
	}
}
