package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"media-harvest/domain/content"
	"media-harvest/domain/download"
	"media-harvest/infrastructure/logger"

	"github.com/google/uuid"
)

// maxListedCandidates bounds how many rejected files an error message names
const maxListedCandidates = 5

// AttemptError describes why one tool did not produce usable audio
type AttemptError struct {
	Tool     string
	Err      error
	Rejected []download.Candidate
}

func (e *AttemptError) Error() string {
	if len(e.Rejected) == 0 {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	listed := e.Rejected
	if len(listed) > maxListedCandidates {
		listed = listed[:maxListedCandidates]
	}
	details := make([]string, 0, len(listed))
	for _, c := range listed {
		details = append(details, c.String())
	}
	return fmt.Sprintf("%s: %v, checked %d files: [%s]", e.Tool, e.Err, len(e.Rejected), strings.Join(details, "; "))
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Request is one item to download into OutputDir
type Request struct {
	Item      content.Item
	OutputDir string
}

// Fallback tries download tools in order until one produces a valid audio file.
type Fallback struct {
	workspace download.Workspace
	validator *download.Validator
	workRoot  string
	log       logger.Logger
	newID     func() string
}

// FallbackOption is a functional option for configuring Fallback
type FallbackOption func(*Fallback)

// WithValidator replaces the default candidate validator
func WithValidator(v *download.Validator) FallbackOption {
	return func(f *Fallback) {
		f.validator = v
	}
}

// WithIDGenerator sets how attempt directory names are generated (for testing)
func WithIDGenerator(gen func() string) FallbackOption {
	return func(f *Fallback) {
		f.newID = gen
	}
}

// NewFallback creates a downloader fallback that works below workRoot
func NewFallback(workspace download.Workspace, workRoot string, log logger.Logger, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		workspace: workspace,
		validator: download.NewValidator(download.DefaultMinCandidateBytes),
		workRoot:  workRoot,
		log:       log,
		newID:     uuid.NewString,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Download runs each tool in a fresh attempt directory and moves the first
// valid candidate into req.OutputDir. The returned path is the final location.
func (f *Fallback) Download(ctx context.Context, req Request, tools []download.Tool) (string, error) {
	if len(tools) == 0 {
		return "", &content.ProcessingError{Stage: "download", Err: errors.New("no download tools configured")}
	}
	if err := f.workspace.MkdirAll(req.OutputDir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var attempts []error
	for i, tool := range tools {
		path, err := f.attempt(ctx, req, tool)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		attempts = append(attempts, err)
		if i < len(tools)-1 {
			f.log.Emit(logger.WARNING, "%v; trying %s", err, tools[i+1].Name())
		}
	}

	return "", &content.ProcessingError{
		Stage:      "download",
		Err:        errors.Join(attempts...),
		Suggestion: remediation(tools, attempts),
	}
}

func (f *Fallback) attempt(ctx context.Context, req Request, tool download.Tool) (string, error) {
	dir := filepath.Join(f.workRoot, "attempt-"+f.newID())
	if err := f.workspace.MkdirAll(dir); err != nil {
		return "", &AttemptError{Tool: tool.Name(), Err: fmt.Errorf("failed to create attempt directory: %w", err)}
	}
	defer func() {
		if err := f.workspace.RemoveAll(dir); err != nil {
			f.log.Emit(logger.DEBUG, "failed to remove %s: %v", dir, err)
		}
	}()

	f.log.Emit(logger.INFO, "downloading %s with %s", req.Item.ID, tool.Name())
	if err := tool.Run(ctx, req.Item.URL, dir); err != nil {
		f.cleanup(tool, dir)
		return "", &AttemptError{Tool: tool.Name(), Err: err}
	}

	candidates, err := f.workspace.Scan(dir)
	if err != nil {
		f.cleanup(tool, dir)
		return "", &AttemptError{Tool: tool.Name(), Err: fmt.Errorf("failed to scan output: %w", err)}
	}
	if len(candidates) == 0 {
		f.cleanup(tool, dir)
		return "", &AttemptError{Tool: tool.Name(), Err: fmt.Errorf("%w: no audio files produced", content.ErrNoValidCandidate)}
	}

	// Largest first: a real track beats a stub or placeholder next to it
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SizeBytes > candidates[j].SizeBytes
	})

	var rejected []download.Candidate
	for _, c := range candidates {
		checked := f.validator.Validate(c)
		if !checked.IsValid {
			f.log.Emit(logger.WARNING, "rejected %s", checked)
			rejected = append(rejected, checked)
			continue
		}

		dst := filepath.Join(req.OutputDir, content.SanitizeFilename(req.Item.ID)+strings.ToLower(filepath.Ext(c.Path)))
		final, err := f.workspace.MoveUnique(c.Path, dst)
		if err != nil {
			return "", &AttemptError{Tool: tool.Name(), Err: fmt.Errorf("failed to move %s: %w", c.Path, err)}
		}
		f.log.Emit(logger.SUCCESS, "%s produced %s", tool.Name(), checked)
		return final, nil
	}

	f.cleanup(tool, dir)
	return "", &AttemptError{Tool: tool.Name(), Err: content.ErrNoValidCandidate, Rejected: rejected}
}

func (f *Fallback) cleanup(tool download.Tool, dir string) {
	if err := tool.CleanupResiduals(dir); err != nil {
		f.log.Emit(logger.DEBUG, "%s residual cleanup failed: %v", tool.Name(), err)
	}
}

// remediation builds the guidance attached to the final error
func remediation(tools []download.Tool, attempts []error) string {
	var hints []string
	blocked := false
	for i, err := range attempts {
		if errors.Is(err, content.ErrToolNotInstalled) && i < len(tools) {
			hints = append(hints, tools[i].InstallHint())
		}
		if errors.Is(err, content.ErrNoValidCandidate) {
			blocked = true
		}
	}
	if blocked {
		hints = append(hints, "the download was probably blocked by anti-bot protection: try again later, use a different network or VPN, or check whether the site requires login for this video")
	}
	if len(hints) == 0 && len(tools) > 0 {
		hints = append(hints, tools[len(tools)-1].InstallHint())
	}
	return strings.Join(hints, "; ")
}
