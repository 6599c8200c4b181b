package download

import (
	"bytes"
	"fmt"
)

// Rule inspects a candidate and returns a non-empty reason to reject it
type Rule func(c Candidate) string

// MinSize rejects files smaller than minBytes
func MinSize(minBytes int64) Rule {
	return func(c Candidate) string {
		if c.SizeBytes < minBytes {
			return fmt.Sprintf("smaller than %d bytes", minBytes)
		}
		return ""
	}
}

// HTMLDocument rejects files that start like an HTML page, whatever their size
func HTMLDocument(c Candidate) string {
	if isHTML(trimLeading(c.header)) {
		return "HTML document instead of media (likely an anti-bot block page)"
	}
	return ""
}

// IframeFragment rejects files whose first 100 bytes contain an <iframe tag
func IframeFragment(c Candidate) string {
	if bytes.Contains(bytes.ToLower(prefix(c.header, 100)), []byte("<iframe")) {
		return "contains an <iframe> fragment"
	}
	return ""
}

// JSONError rejects JSON objects that carry an error key
func JSONError(c Candidate) string {
	trimmed := trimLeading(c.header)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ""
	}
	if bytes.Contains(bytes.ToLower(prefix(trimmed, 100)), []byte("error")) {
		return "JSON error response instead of media"
	}
	return ""
}

func prefix(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// Validator classifies candidates as usable audio or contamination.
type Validator struct {
	rules []Rule
}

// NewValidator returns a validator with the default rule set
func NewValidator(minBytes int64) *Validator {
	if minBytes <= 0 {
		minBytes = DefaultMinCandidateBytes
	}
	return &Validator{
		rules: []Rule{HTMLDocument, IframeFragment, JSONError, MinSize(minBytes)},
	}
}

// NewValidatorWithRules builds a validator from explicit rules
func NewValidatorWithRules(rules ...Rule) *Validator {
	return &Validator{rules: rules}
}

// Validate returns c with IsValid and Reason filled in
func (v *Validator) Validate(c Candidate) Candidate {
	for _, rule := range v.rules {
		if reason := rule(c); reason != "" {
			c.IsValid = false
			c.Reason = reason
			return c
		}
	}
	c.IsValid = true
	c.Reason = ""
	return c
}
