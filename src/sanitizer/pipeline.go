package sanitizer

import "context"

// Pipeline executes scanners in order. A VerdictBlock stops the run
// immediately; a VerdictModify threads the rewritten content into the
// scanners that follow.
type Pipeline struct {
	scanners []Scanner
}

// NewPipeline creates a pipeline that runs scanners in slice order.
func NewPipeline(scanners ...Scanner) *Pipeline {
	return &Pipeline{scanners: scanners}
}

// Process runs the content through every scanner and aggregates the
// results.
func (p *Pipeline) Process(ctx context.Context, content string) (PipelineResult, error) {
	current := content
	result := PipelineResult{
		FinalVerdict: VerdictPass,
		ScanResults:  make([]ScanResult, 0, len(p.scanners)),
	}

	for _, s := range p.scanners {
		sr, err := s.Scan(ctx, current)
		if err != nil {
			return result, err
		}

		result.ScanResults = append(result.ScanResults, sr)
		result.Findings = append(result.Findings, sr.Findings...)

		switch sr.Verdict {
		case VerdictBlock:
			result.FinalVerdict = VerdictBlock
			result.FinalContent = sr.Content
			return result, nil
		case VerdictModify:
			result.FinalVerdict = VerdictModify
			current = sr.Content
		}
	}

	result.FinalContent = current
	return result, nil
}
