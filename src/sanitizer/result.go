package sanitizer

// Verdict is the outcome of a scan.
type Verdict int

const (
	// VerdictPass means the content is clean as-is.
	VerdictPass Verdict = iota
	// VerdictModify means the content was rewritten; use the returned
	// content in place of the original.
	VerdictModify
	// VerdictBlock means the content must not be forwarded.
	VerdictBlock
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictModify:
		return "modify"
	case VerdictBlock:
		return "block"
	default:
		return "unknown"
	}
}

// ScanResult is one scanner's verdict on a piece of content.
type ScanResult struct {
	Verdict  Verdict
	Content  string   // original or rewritten content
	Findings []string // human-readable descriptions of what was detected
	Scanner  string
}

// PipelineResult aggregates the verdicts of every scanner that ran.
type PipelineResult struct {
	FinalVerdict Verdict
	FinalContent string
	Findings     []string
	ScanResults  []ScanResult
}
