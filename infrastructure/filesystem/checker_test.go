package filesystem

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"media-harvest/domain/download"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestWorkspace_ScanRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.m4a"), append([]byte{0, 0, 0, 0x20}, []byte("ftypM4A ")...))
	writeFile(t, filepath.Join(dir, "123456", "nested", "b.MP3"), []byte("ID3\x04rest"))
	writeFile(t, filepath.Join(dir, "cover.jpg"), []byte("jpeg"))
	writeFile(t, filepath.Join(dir, "block.mp3"), []byte("<html>denied</html>"))

	candidates, err := NewWorkspace().Scan(dir)
	require.NoError(t, err)

	formats := map[string]download.Format{}
	for _, c := range candidates {
		formats[filepath.Base(c.Path)] = c.DetectedFormat
	}
	assert.Equal(t, map[string]download.Format{
		"a.m4a":     download.FormatM4A,
		"b.MP3":     download.FormatMP3,
		"block.mp3": download.FormatHTML,
	}, formats)
}

func TestWorkspace_MoveUnique(t *testing.T) {
	dir := t.TempDir()
	ws := NewWorkspace()
	dst := filepath.Join(dir, "out", "BV1.m4a")
	writeFile(t, dst, []byte("existing"))
	writeFile(t, filepath.Join(dir, "out", "BV1 (1).m4a"), []byte("existing"))

	src := filepath.Join(dir, "work", "track.m4a")
	writeFile(t, src, []byte("new"))

	final, err := ws.MoveUnique(src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "BV1 (2).m4a"), final)
	assert.False(t, ws.Exists(src))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRemoveNumericDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "115032964796336", "sub"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "keep"), 0755))
	writeFile(t, filepath.Join(dir, "42"), []byte("a file named with digits"))

	require.NoError(t, RemoveNumericDirs(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"42", "keep"}, names)
}

func TestRemoveNumericDirs_MissingDir(t *testing.T) {
	assert.NoError(t, RemoveNumericDirs(filepath.Join(t.TempDir(), "missing")))
}

func TestWorkspace_Size(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, make([]byte, 1234))

	ws := NewWorkspace()
	assert.Equal(t, int64(1234), ws.Size(path))
	assert.Equal(t, int64(0), ws.Size(filepath.Join(dir, "missing")))
}
