package bbdown

import (
	"context"
	"fmt"
	"time"

	"media-harvest/domain/download"
	"media-harvest/infrastructure/command"
	"media-harvest/infrastructure/filesystem"
)

// Tool implements download.Tool using BBDown's audio-only mode
type Tool struct {
	executable string
	timeout    time.Duration
	runner     command.CommandRunner
}

// Option is a functional option for configuring Tool
type Option func(*Tool)

// WithExecutable sets the BBDown binary
func WithExecutable(path string) Option {
	return func(t *Tool) {
		t.executable = path
	}
}

// WithTimeout bounds one download
func WithTimeout(d time.Duration) Option {
	return func(t *Tool) {
		t.timeout = d
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner command.CommandRunner) Option {
	return func(t *Tool) {
		t.runner = runner
	}
}

// NewTool creates a BBDown download tool
func NewTool(opts ...Option) *Tool {
	t := &Tool{
		executable: "BBDown",
		timeout:    10 * time.Minute,
		runner:     &command.ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name implements download.Tool
func (t *Tool) Name() string {
	return "BBDown"
}

// Run implements download.Tool. BBDown writes into its working directory.
func (t *Tool) Run(ctx context.Context, url, workDir string) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if err := t.runner.Run(ctx, workDir, t.executable, "--audio-only", url); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("BBDown timed out after %s", t.timeout)
		}
		return err
	}
	return nil
}

// CleanupResiduals removes the numbered directories BBDown leaves on failure
func (t *Tool) CleanupResiduals(workDir string) error {
	return filesystem.RemoveNumericDirs(workDir)
}

// InstallHint implements download.Tool
func (t *Tool) InstallHint() string {
	return "install BBDown from https://github.com/nilaoda/BBDown/releases and check whether BBDown login is required (BBDown login)"
}

// Ensure Tool implements download.Tool
var _ download.Tool = (*Tool)(nil)
