package content

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoItems is returned when a lister finds nothing to process
	ErrNoItems = errors.New("no items found")

	// ErrTranscriptNotFound is returned when a provider has no transcript for the item
	ErrTranscriptNotFound = errors.New("transcript not available")

	// ErrAllKeysRejected is returned when every configured API key was refused
	ErrAllKeysRejected = errors.New("all API keys rejected")

	// ErrNoValidCandidate is returned when a download produced no usable audio file
	ErrNoValidCandidate = errors.New("no valid audio candidate")

	// ErrCursorNotFound is returned when the companion page endpoint reports the end of a feed
	ErrCursorNotFound = errors.New("cursor page not found")

	// ErrToolNotInstalled is returned when an external executable cannot be found
	ErrToolNotInstalled = errors.New("external tool not installed")

	// ErrAllMethodsExhausted is returned when every fetch strategy failed for an item
	ErrAllMethodsExhausted = errors.New("all methods exhausted")
)

// ValidationError is raised for malformed input before a run starts.
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Field != "" {
		fmt.Fprintf(&b, "invalid %s: ", e.Field)
	}
	b.WriteString(e.Message)
	if e.Suggestion != "" {
		b.WriteString("\n\nTo fix this: ")
		b.WriteString(e.Suggestion)
	}
	return b.String()
}

// NetworkError wraps an HTTP or transport failure.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient reports whether retrying the same request may succeed.
func (e *NetworkError) Transient() bool {
	switch e.StatusCode {
	case 0, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// ProcessingError is a download, conversion or transcription failure for one item.
type ProcessingError struct {
	Stage      string
	Err        error
	Suggestion string
}

func (e *ProcessingError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	if e.Suggestion != "" {
		msg += ". " + e.Suggestion
	}
	return msg
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// LedgerCorruptionError is returned when a persisted ledger cannot be parsed.
type LedgerCorruptionError struct {
	Path string
	Err  error
}

func (e *LedgerCorruptionError) Error() string {
	return fmt.Sprintf("ledger %s is corrupt: %v (rerun with --reset-corrupt-ledger to start over; completed items would be processed again)", e.Path, e.Err)
}

func (e *LedgerCorruptionError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a NetworkError worth retrying.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Transient()
	}
	return false
}
