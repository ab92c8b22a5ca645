package guard

import (
	"regexp"
	"strings"
)

// category is one attack family: a name and a matcher that returns the
// evidence weight it contributes (0 when nothing matched) plus the
// pattern labels to record. Categories are evaluated in table order and
// are independent of each other.
type category struct {
	name  string
	check func(content string) (float64, []string)
}

// categories is the fixed evaluation order. The per-category weights
// (1.0, 0.9, 0.8/0.7, 0.95, 0.3-per-sequence capped at 1.0, 0.95) and
// the 6.0 normalizer in guard.go are calibrated together; adjust one
// and the sensitivity defaults stop meaning anything.
var categories = []category{
	{"system_prompt_override", checkSystemOverride},
	{"role_confusion", checkRoleConfusion},
	{"tool_call_injection", checkToolInjection},
	{"secret_extraction", checkSecretExtraction},
	{"command_injection", checkCommandInjection},
	{"jailbreak_attempt", checkJailbreak},
}

// compile prefixes each expression with (?i) and compiles it. Pattern
// tables are package constants, so a malformed expression panics at
// process startup rather than per call.
func compile(exprs []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		res = append(res, regexp.MustCompile("(?i)"+e))
	}
	return res
}

var systemOverridePatterns = compile([]string{
	// Qualifiers stack ("all previous instructions"), so the group repeats.
	`ignore\s+(?:(?:previous|all|above|prior)\s+)+(instructions?|prompts?|commands?)`,
	`disregard\s+(previous|all|above|prior)`,
	`forget\s+(previous|all|everything|above)`,
	`new\s+(instructions?|rules?|system\s+prompt)`,
	`override\s+(system|instructions?|rules?)`,
	`reset\s+(instructions?|context|system)`,
})

var roleConfusionPatterns = compile([]string{
	`(you\s+are\s+now|act\s+as|pretend\s+(you're|to\s+be))\s+(a|an|the)?`,
	`(your\s+new\s+role|you\s+have\s+become|you\s+must\s+be)`,
	`from\s+now\s+on\s+(you\s+are|act\s+as|pretend)`,
	`(assistant|AI|system|model):\s*\[?(system|override|new\s+role)`,
})

var secretExtractionPatterns = compile([]string{
	`(list|show|print|display|reveal|tell\s+me)\s+(all\s+)?(secrets?|credentials?|passwords?|tokens?|keys?)`,
	`(what|show)\s+(are|is|me)\s+(your|the)\s+(api\s+)?(keys?|secrets?|credentials?)`,
	`contents?\s+of\s+(vault|secrets?|credentials?)`,
	`(dump|export)\s+(vault|secrets?|credentials?)`,
})

var jailbreakPatterns = compile([]string{
	`DAN\s+mode`,
	`(developer|admin|root)\s+mode`,
	`bypass\s+(restrictions?|limitations?|rules?)`,
	`unlock\s+(all|full)\s+(capabilities|features)`,
	`(disable|remove|turn\s+off)\s+(safety|guardrails|filters?)`,
})

// commandSequences are literal shell metacharacter sequences. Each
// distinct one found adds 0.3 to the category, capped at 1.0. This
// category is noisier than the regex ones above, hence the graduated
// weight.
var commandSequences = []struct {
	seq, name string
}{
	{"`", "backtick_execution"},
	{"$(", "command_substitution"},
	{"&&", "command_chaining"},
	{"||", "command_chaining"},
	{";", "command_separator"},
	{"|", "pipe_operator"},
	{">/dev/", "dev_redirect"},
	{"2>&1", "stderr_redirect"},
}

// discussionMarkers suppress the command-injection category entirely:
// shell metacharacters are common in legitimate explanations.
var discussionMarkers = []string{"example", "how to", "explain"}

func firstMatch(content, label string, weight float64, patterns []*regexp.Regexp) (float64, []string) {
	for _, re := range patterns {
		if re.MatchString(content) {
			return weight, []string{label}
		}
	}
	return 0, nil
}

func checkSystemOverride(content string) (float64, []string) {
	return firstMatch(content, "system_prompt_override", 1.0, systemOverridePatterns)
}

func checkRoleConfusion(content string) (float64, []string) {
	return firstMatch(content, "role_confusion", 0.9, roleConfusionPatterns)
}

// checkToolInjection runs two sub-checks: a tool-call marker next to a
// JSON payload opener, and string/JSON escape sequences that suggest
// breaking out of a structured payload. The payload check wins when
// both would match.
func checkToolInjection(content string) (float64, []string) {
	if strings.Contains(content, "tool_calls") || strings.Contains(content, "function_call") {
		if strings.Contains(content, `{"type":`) || strings.Contains(content, `{"name":`) {
			return 0.8, []string{"tool_call_injection"}
		}
	}
	if strings.Contains(content, `}"}"`) || strings.Contains(content, "}'") {
		return 0.7, []string{"json_escape_attempt"}
	}
	return 0, nil
}

func checkSecretExtraction(content string) (float64, []string) {
	return firstMatch(content, "secret_extraction", 0.95, secretExtractionPatterns)
}

func checkCommandInjection(content string) (float64, []string) {
	lower := strings.ToLower(content)
	for _, marker := range discussionMarkers {
		if strings.Contains(lower, marker) {
			return 0, nil
		}
	}

	score := 0.0
	var labels []string
	seen := make(map[string]bool, len(commandSequences))
	for _, cs := range commandSequences {
		if !strings.Contains(content, cs.seq) {
			continue
		}
		score += 0.3
		label := "command_injection_" + cs.name
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, labels
}

func checkJailbreak(content string) (float64, []string) {
	return firstMatch(content, "jailbreak_attempt", 0.95, jailbreakPatterns)
}
