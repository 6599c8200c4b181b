package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"media-harvest/domain/content"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCommandRunner_NotInstalled(t *testing.T) {
	err := (&ExecCommandRunner{}).Run(context.Background(), "", "definitely-not-a-real-tool-xyz")
	assert.True(t, errors.Is(err, content.ErrToolNotInstalled), "got %v", err)
}

func TestExecCommandRunner_ExitCodeAndStderr(t *testing.T) {
	err := (&ExecCommandRunner{}).Run(context.Background(), "", "sh", "-c", "echo blocked >&2; exit 3")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "blocked", exitErr.Stderr)
}

func TestExecCommandRunner_RunInDir(t *testing.T) {
	dir := t.TempDir()
	out, err := (&ExecCommandRunner{}).Output(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(string(out)))

	require.NoError(t, (&ExecCommandRunner{}).Run(context.Background(), dir, "sh", "-c", "touch marker"))
	_, err = (&ExecCommandRunner{}).Output(context.Background(), "test", "-f", dir+"/marker")
	assert.NoError(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "...cde", tail("abcde", 3))
}
