package sanitizer

import "context"

// LengthScanner truncates responses that exceed a character budget.
// Oversized tool output is a cheap way to bury instructions past the
// point a reviewer will read.
type LengthScanner struct {
	MaxChars int
}

func NewLengthScanner(maxChars int) *LengthScanner {
	return &LengthScanner{MaxChars: maxChars}
}

func (s *LengthScanner) Name() string { return "length" }

func (s *LengthScanner) Scan(_ context.Context, content string) (ScanResult, error) {
	runes := []rune(content)
	if len(runes) <= s.MaxChars {
		return ScanResult{Verdict: VerdictPass, Content: content, Scanner: s.Name()}, nil
	}

	return ScanResult{
		Verdict:  VerdictModify,
		Content:  string(runes[:s.MaxChars]) + "\n[truncated]",
		Findings: []string{"response exceeded character limit"},
		Scanner:  s.Name(),
	}, nil
}
