package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"media-harvest/domain/download"
)

// Workspace implements download.Workspace on the local disk
type Workspace struct{}

// NewWorkspace creates a new filesystem workspace
func NewWorkspace() *Workspace {
	return &Workspace{}
}

// Exists returns true if the file exists
func (w *Workspace) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the file size, or 0 when the file cannot be read
func (w *Workspace) Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Scan walks dir and returns every audio-extension file as a sniffed candidate
func (w *Workspace) Scan(dir string) ([]download.Candidate, error) {
	var candidates []download.Candidate
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !download.HasAudioExtension(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := readHeader(path, download.HeaderSize)
		if err != nil {
			return err
		}
		candidates = append(candidates, download.NewCandidate(path, info.Size(), header))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return candidates, nil
}

func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

// MoveUnique moves src to dst. When dst exists it picks "name (1).ext",
// "name (2).ext" and so on.
func (w *Workspace) MoveUnique(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	final := UniquePath(dst, w.Exists)
	if err := os.Rename(src, final); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return "", err
		}
		if err := copyFile(src, final); err != nil {
			return "", err
		}
		if err := os.Remove(src); err != nil {
			return "", err
		}
	}
	return final, nil
}

// UniquePath returns path, or the first "name (n).ext" variant for which exists is false
func UniquePath(path string, exists func(string) bool) string {
	if !exists(path) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if !exists(candidate) {
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// RemoveAll deletes a directory tree
func (w *Workspace) RemoveAll(dir string) error {
	return os.RemoveAll(dir)
}

// MkdirAll creates a directory tree
func (w *Workspace) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// RemoveNumericDirs deletes every direct subdirectory of dir whose name is all digits.
// Some downloaders leave such directories behind after an aborted run.
func RemoveNumericDirs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() && isDigits(e.Name()) {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Ensure Workspace implements download.Workspace
var _ download.Workspace = (*Workspace)(nil)
