package sanitizer

import (
	"context"
	"fmt"

	"github.com/guardline/promptguard/src/leak"
)

// LeakScanner redacts credentials found in downstream responses. A
// critical finding blocks the response outright, everything else is
// rewritten in place.
type LeakScanner struct {
	detector *leak.Detector
}

func NewLeakScanner(d *leak.Detector) *LeakScanner {
	return &LeakScanner{detector: d}
}

func (s *LeakScanner) Name() string { return "leak" }

func (s *LeakScanner) Scan(_ context.Context, content string) (ScanResult, error) {
	report := s.detector.Scan(content)
	if report.Clean() {
		return ScanResult{Verdict: VerdictPass, Content: content, Scanner: s.Name()}, nil
	}

	findings := make([]string, 0, len(report.Matches))
	for _, m := range report.Matches {
		findings = append(findings, fmt.Sprintf("%s (%s)", m.Name, m.Severity))
	}

	if report.ShouldBlock() {
		return ScanResult{
			Verdict:  VerdictBlock,
			Content:  content,
			Findings: findings,
			Scanner:  s.Name(),
		}, nil
	}

	return ScanResult{
		Verdict:  VerdictModify,
		Content:  s.detector.Redact(content),
		Findings: findings,
		Scanner:  s.Name(),
	}, nil
}
