// Package safety consolidates the individual defenses (input
// validation, the prompt-injection guard, credential leak detection,
// SSRF protection) behind one configurable layer that applies a
// per-category policy of ignore, warn, block, or sanitize to each
// detection.
package safety

import (
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/guardline/promptguard/src/guard"
	"github.com/guardline/promptguard/src/leak"
	"github.com/guardline/promptguard/src/ssrf"
)

// Config selects a policy per defense category plus the knobs the
// underlying engines need.
type Config struct {
	InputValidationPolicy PolicyAction
	PromptInjectionPolicy PolicyAction
	SSRFPolicy            PolicyAction
	LeakDetectionPolicy   PolicyAction

	// PromptSensitivity is the guard's blocking threshold.
	PromptSensitivity float64
	// MaxInputLength bounds message size in bytes.
	MaxInputLength int
	// AllowPrivateIPs relaxes SSRF checks to the metadata endpoint only.
	AllowPrivateIPs bool
	// BlockedCIDRRanges adds ranges beyond the SSRF defaults.
	BlockedCIDRRanges []string
}

// DefaultConfig mirrors the shipped defaults: observe injections and
// leaks, hard-block SSRF, and the calibrated 0.15 guard threshold.
func DefaultConfig() Config {
	return Config{
		InputValidationPolicy: PolicyWarn,
		PromptInjectionPolicy: PolicyWarn,
		SSRFPolicy:            PolicyBlock,
		LeakDetectionPolicy:   PolicyWarn,
		PromptSensitivity:     0.15,
		MaxInputLength:        100_000,
	}
}

// Layer runs content through every enabled defense and applies the
// configured policies. Immutable after construction and safe for
// concurrent use.
type Layer struct {
	cfg    Config
	guard  *guard.Guard
	leaks  *leak.Detector
	ssrf   *ssrf.Validator
	logger *slog.Logger
}

// New builds a layer from config. Malformed extra CIDR ranges are
// logged and skipped rather than failing construction.
func New(cfg Config, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("area", "safety")

	validator := ssrf.New(cfg.AllowPrivateIPs)
	for _, cidr := range cfg.BlockedCIDRRanges {
		if err := validator.AddBlockedRange(cidr); err != nil {
			logger.Warn("skipping blocked range", "cidr", cidr, "err", err)
		}
	}

	return &Layer{
		cfg:    cfg,
		guard:  guard.New(cfg.PromptInjectionPolicy.guardAction(), cfg.PromptSensitivity),
		leaks:  leak.NewDetector(),
		ssrf:   validator,
		logger: logger,
	}
}

// Guard exposes the layer's injection guard so callers can share it
// with a sanitization pipeline.
func (l *Layer) Guard() *guard.Guard { return l.guard }

// ValidateMessage checks inbound text: size and encoding, then prompt
// injection, then credential leaks. A block-policy detection returns an
// error; anything else returns the first non-safe Result, or a safe
// one.
func (l *Layer) ValidateMessage(content string) (Result, error) {
	if l.cfg.InputValidationPolicy != PolicyIgnore {
		res, err := l.checkInput(content)
		if err != nil || !res.Safe {
			return res, err
		}
	}

	if l.cfg.PromptInjectionPolicy != PolicyIgnore {
		res, err := l.checkInjection(content)
		if err != nil || !res.Safe || len(res.Details) > 0 {
			return res, err
		}
	}

	if l.cfg.LeakDetectionPolicy != PolicyIgnore {
		res, err := l.checkLeaks(content)
		if err != nil || !res.Safe || len(res.Details) > 0 {
			return res, err
		}
	}

	return safeResult(CategoryPromptInjection), nil
}

// ValidateURL applies the SSRF policy to a URL from model output.
func (l *Layer) ValidateURL(raw string) (Result, error) {
	if l.cfg.SSRFPolicy == PolicyIgnore {
		return safeResult(CategorySSRF), nil
	}

	err := l.ssrf.ValidateURL(raw)
	if err == nil {
		return safeResult(CategorySSRF), nil
	}

	if l.cfg.SSRFPolicy == PolicyBlock {
		return Result{}, fmt.Errorf("ssrf protection blocked URL: %w", err)
	}
	l.logger.Warn("ssrf warning", "err", err)
	return detectedResult(CategorySSRF, PolicyWarn, []string{err.Error()}, 1.0), nil
}

// ValidateRequest checks an outbound HTTP request: SSRF on the URL,
// then credential exfiltration in URL, headers, and body.
func (l *Layer) ValidateRequest(raw string, headers http.Header, body []byte) (Result, error) {
	if res, err := l.ValidateURL(raw); err != nil || !res.Safe {
		return res, err
	}

	if l.cfg.LeakDetectionPolicy == PolicyIgnore {
		return safeResult(CategoryLeakDetection), nil
	}

	err := l.leaks.ScanRequest(raw, headers, body)
	if err == nil {
		return safeResult(CategoryLeakDetection), nil
	}

	if l.cfg.LeakDetectionPolicy == PolicyBlock {
		return Result{}, fmt.Errorf("credential leak in outbound request: %w", err)
	}
	l.logger.Warn("potential credential leak in request", "err", err)
	return detectedResult(CategoryLeakDetection, l.cfg.LeakDetectionPolicy, []string{err.Error()}, 1.0), nil
}

// ValidateOutput applies leak detection to model output.
func (l *Layer) ValidateOutput(content string) (Result, error) {
	if l.cfg.LeakDetectionPolicy == PolicyIgnore {
		return safeResult(CategoryLeakDetection), nil
	}
	return l.checkLeaks(content)
}

// CheckAll runs every enabled text defense and collects the non-clean
// results without short-circuiting. Block policies do not error here;
// this is the audit view.
func (l *Layer) CheckAll(content string) []Result {
	var results []Result

	if l.cfg.InputValidationPolicy != PolicyIgnore {
		if res, err := l.checkInput(content); err != nil {
			results = append(results, detectedResult(CategoryInputValidation, PolicyBlock, []string{err.Error()}, 1.0))
		} else if !res.Safe || len(res.Details) > 0 {
			results = append(results, res)
		}
	}

	if l.cfg.PromptInjectionPolicy != PolicyIgnore {
		if res, err := l.checkInjection(content); err != nil {
			results = append(results, detectedResult(CategoryPromptInjection, PolicyBlock, []string{err.Error()}, 1.0))
		} else if !res.Safe || len(res.Details) > 0 {
			results = append(results, res)
		}
	}

	if l.cfg.LeakDetectionPolicy != PolicyIgnore {
		if res, err := l.checkLeaks(content); err != nil {
			results = append(results, detectedResult(CategoryLeakDetection, PolicyBlock, []string{err.Error()}, 1.0))
		} else if !res.Safe || len(res.Details) > 0 {
			results = append(results, res)
		}
	}

	return results
}

func (l *Layer) checkInput(content string) (Result, error) {
	if len(content) > l.maxInputLength() {
		detail := fmt.Sprintf("input length %d exceeds limit %d", len(content), l.maxInputLength())
		if l.cfg.InputValidationPolicy == PolicyBlock {
			return Result{}, fmt.Errorf("input validation failed: %s", detail)
		}
		return detectedResult(CategoryInputValidation, l.cfg.InputValidationPolicy, []string{detail}, 1.0), nil
	}

	if !utf8.ValidString(content) {
		l.logger.Warn("input contains invalid UTF-8")
		return detectedResult(CategoryInputValidation, PolicyWarn, []string{"invalid UTF-8 sequence"}, 0.5), nil
	}

	return safeResult(CategoryInputValidation), nil
}

func (l *Layer) checkInjection(content string) (Result, error) {
	scan := l.guard.Scan(content)
	if scan.Safe {
		return safeResult(CategoryPromptInjection), nil
	}

	// The guard only blocks when it was built with a block action,
	// which happens exactly under PolicyBlock.
	if scan.Blocked {
		return Result{}, fmt.Errorf("prompt injection blocked: %s", scan.Message)
	}

	action := l.cfg.PromptInjectionPolicy
	res := detectedResult(CategoryPromptInjection, action, scan.Patterns, scan.Score)
	switch action {
	case PolicySanitize:
		res.Sanitized = l.guard.Sanitize(content)
	case PolicyWarn:
		l.logger.Warn("prompt injection detected",
			"score", scan.Score, "patterns", scan.Patterns)
	}
	return res, nil
}

func (l *Layer) checkLeaks(content string) (Result, error) {
	report := l.leaks.Scan(content)
	if report.Clean() {
		return safeResult(CategoryLeakDetection), nil
	}

	details := []string{leak.Describe(report)}
	score := 0.0
	if max, ok := report.MaxSeverity(); ok {
		score = max.Score()
	}

	if report.ShouldBlock() && l.cfg.LeakDetectionPolicy == PolicyBlock {
		return Result{}, fmt.Errorf("credential leak detected: %s", leak.Describe(report))
	}

	action := l.cfg.LeakDetectionPolicy
	res := detectedResult(CategoryLeakDetection, action, details, score)
	switch action {
	case PolicySanitize:
		res.Sanitized = l.leaks.Redact(content)
	case PolicyWarn:
		l.logger.Warn("potential credential leak",
			"score", score, "details", details)
	}
	return res, nil
}

func (l *Layer) maxInputLength() int {
	if l.cfg.MaxInputLength <= 0 {
		return DefaultConfig().MaxInputLength
	}
	return l.cfg.MaxInputLength
}
