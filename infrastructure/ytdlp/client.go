package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"media-harvest/domain/content"

	"github.com/lrstanley/go-ytdlp"
)

// Runner executes a configured yt-dlp command
// This allows mocking the binary in tests
type Runner interface {
	Run(ctx context.Context, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error)
}

// LibraryRunner runs commands through go-ytdlp
type LibraryRunner struct{}

// Run implements Runner
func (LibraryRunner) Run(ctx context.Context, cmd *ytdlp.Command, args ...string) (*ytdlp.Result, error) {
	return cmd.Run(ctx, args...)
}

// Client holds the settings shared by every yt-dlp based adapter
type Client struct {
	executable string
	proxy      string
	timeout    time.Duration
	runner     Runner
	lookPath   func(string) (string, error)
}

// Option is a functional option for configuring Client
type Option func(*Client)

// WithExecutable sets the yt-dlp binary
func WithExecutable(path string) Option {
	return func(c *Client) {
		c.executable = path
	}
}

// WithProxy routes yt-dlp traffic through proxy
func WithProxy(proxy string) Option {
	return func(c *Client) {
		c.proxy = proxy
	}
}

// WithTimeout bounds a single yt-dlp invocation
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRunner sets a custom runner (for testing)
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.runner = r
	}
}

// WithLookPath replaces exec.LookPath (for testing)
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Client) {
		c.lookPath = fn
	}
}

// NewClient creates a yt-dlp client
func NewClient(opts ...Option) *Client {
	c := &Client{
		executable: "yt-dlp",
		timeout:    10 * time.Minute,
		runner:     LibraryRunner{},
		lookPath:   exec.LookPath,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// command returns a base command with the shared flags applied
func (c *Client) command() *ytdlp.Command {
	cmd := ytdlp.New().
		SetExecutable(c.executable).
		NoProgress().
		NoWarnings()
	if c.proxy != "" {
		cmd.Proxy(c.proxy)
	}
	return cmd
}

func (c *Client) run(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.Result, error) {
	if _, err := c.lookPath(c.executable); err != nil {
		return nil, fmt.Errorf("%w: %s", content.ErrToolNotInstalled, c.executable)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.runner.Run(ctx, cmd, url)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("yt-dlp timed out after %s", c.timeout)
		}
		if result != nil && result.Stderr != "" {
			return result, fmt.Errorf("yt-dlp failed: %s", lastLine(result.Stderr))
		}
		return result, fmt.Errorf("yt-dlp failed: %w", err)
	}
	return result, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
