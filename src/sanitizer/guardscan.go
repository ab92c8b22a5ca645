package sanitizer

import (
	"context"
	"fmt"

	"github.com/guardline/promptguard/src/guard"
)

// GuardScanner runs content through the prompt-injection guard. The
// guard's configured action decides the verdict: a blocked scan becomes
// VerdictBlock, a suspicious scan under a sanitize-action guard becomes
// VerdictModify with the rewritten text, and anything else passes
// (suspicious-but-allowed findings are still reported).
type GuardScanner struct {
	guard *guard.Guard
}

// NewGuardScanner wraps an already-configured guard.
func NewGuardScanner(g *guard.Guard) *GuardScanner {
	return &GuardScanner{guard: g}
}

func (s *GuardScanner) Name() string { return "guard" }

func (s *GuardScanner) Scan(_ context.Context, content string) (ScanResult, error) {
	res := s.guard.Scan(content)

	if res.Safe {
		return ScanResult{Verdict: VerdictPass, Content: content, Scanner: s.Name()}, nil
	}

	findings := []string{fmt.Sprintf("prompt injection (score %.2f): %v", res.Score, res.Patterns)}

	if res.Blocked {
		return ScanResult{
			Verdict:  VerdictBlock,
			Content:  content,
			Findings: findings,
			Scanner:  s.Name(),
		}, nil
	}

	if s.guard.Action() == guard.ActionSanitize {
		return ScanResult{
			Verdict:  VerdictModify,
			Content:  s.guard.Sanitize(content),
			Findings: findings,
			Scanner:  s.Name(),
		}, nil
	}

	return ScanResult{
		Verdict:  VerdictPass,
		Content:  content,
		Findings: findings,
		Scanner:  s.Name(),
	}, nil
}
