// Package sanitizer runs tool responses through an ordered pipeline of
// content scanners before they reach the LLM: invisible-text removal,
// length capping, injection detection via the guard engine, credential
// redaction, and boundary wrapping.
package sanitizer

import "context"

// Scanner inspects and optionally transforms text content. The input
// string is never mutated; transformed content comes back in the
// ScanResult.
type Scanner interface {
	// Name identifies the scanner in logs and results.
	Name() string

	// Scan inspects content and returns a verdict.
	Scan(ctx context.Context, content string) (ScanResult, error)
}
