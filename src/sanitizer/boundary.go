package sanitizer

import (
	"context"
	"fmt"
)

// BoundaryScanner wraps content in source-attributed delimiters so the
// model can tell external tool output apart from its own instructions.
type BoundaryScanner struct {
	Source string // e.g. "servername__toolname"
}

func NewBoundaryScanner(source string) *BoundaryScanner {
	return &BoundaryScanner{Source: source}
}

func (s *BoundaryScanner) Name() string { return "boundary" }

func (s *BoundaryScanner) Scan(_ context.Context, content string) (ScanResult, error) {
	wrapped := fmt.Sprintf("<external_tool_response source=%q>\n%s\n</external_tool_response>", s.Source, content)

	return ScanResult{
		Verdict: VerdictModify,
		Content: wrapped,
		Scanner: s.Name(),
	}, nil
}
