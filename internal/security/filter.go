package security

import (
	"fmt"
	"regexp"
)

// DefaultMaxBytes is the largest upload accepted before any model call.
const DefaultMaxBytes = 5 * 1024 * 1024

// Result is the outcome of a filter pass. Passed is false only for hard
// rejections; redactions never fail the check.
type Result struct {
	Passed        bool
	Reason        string
	SanitizedText string
	Findings      []string
}

// Changed reports whether any redaction or removal happened.
func (r Result) Changed() bool { return len(r.Findings) > 0 }

type redaction struct {
	name string
	re   *regexp.Regexp
	repl string
}

// Applied in order: the token rule runs after key assignments are already masked.
var redactions = []redaction{
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN-REDACTED]"},
	{"credential-email", regexp.MustCompile(`(?i)\b((?:email|user|username|login)\s*[:=]\s*)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "${1}[EMAIL-REDACTED]"},
	{"card", regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`), "[CARD-REDACTED]"},
	{"password", regexp.MustCompile(`(?i)\b(password|pwd|passwd)\s*[:=]\s*\S+`), "${1}: [PASSWORD-REDACTED]"},
	{"api-key", regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`), "${1}: [API-KEY-REDACTED]"},
	{"token", regexp.MustCompile(`\b[A-Za-z0-9]{40,}\b`), "[TOKEN-REDACTED]"},
}

var injections = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(?:previous|all|above)\s+(?:instructions|prompts)`),
	regexp.MustCompile(`(?i)disregard\s+(?:previous|all|above)`),
	regexp.MustCompile(`(?i)forget\s+(?:previous|all|above)`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)new\s+instructions`),
}

const removedMarker = "[REMOVED]"

// Filter scrubs secrets, PII and prompt-injection phrases from input text.
type Filter struct {
	MaxBytes int64
}

func New(maxBytes int64) Filter {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return Filter{MaxBytes: maxBytes}
}

func (f Filter) limit() int64 {
	if f.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return f.MaxBytes
}

// CheckSize rejects an upload larger than the configured limit.
func (f Filter) CheckSize(n int) Result {
	if int64(n) > f.limit() {
		return Result{
			Passed: false,
			Reason: fmt.Sprintf("file too large: %d bytes exceeds the %d byte limit", n, f.limit()),
		}
	}
	return Result{Passed: true}
}

// Sanitize redacts sensitive values and removes injection phrases.
// It never fails.
func (f Filter) Sanitize(text string) Result {
	out := text
	var findings []string
	for _, r := range redactions {
		if r.re.MatchString(out) {
			out = r.re.ReplaceAllString(out, r.repl)
			findings = append(findings, r.name)
		}
	}
	injected := false
	for _, re := range injections {
		if re.MatchString(out) {
			out = re.ReplaceAllString(out, removedMarker)
			injected = true
		}
	}
	if injected {
		findings = append(findings, "prompt-injection")
	}
	return Result{Passed: true, SanitizedText: out, Findings: findings}
}

// Check runs the size check on the original upload and then sanitizes text.
// upload may be nil when the caller sent plain text.
func (f Filter) Check(text string, upload []byte) Result {
	size := len(upload)
	if upload == nil {
		size = len(text)
	}
	if res := f.CheckSize(size); !res.Passed {
		return res
	}
	return f.Sanitize(text)
}
