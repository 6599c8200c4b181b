package download

import "context"

// Tool is an external downloader. Run writes whatever it produces into workDir;
// the caller scans that directory afterwards.
type Tool interface {
	// Name is used in logs and error messages
	Name() string

	// Run downloads the audio track of url into workDir
	Run(ctx context.Context, url, workDir string) error

	// CleanupResiduals removes leftovers the tool is known to leave behind after a failure
	CleanupResiduals(workDir string) error

	// InstallHint is shown when every tool failed
	InstallHint() string
}

// Workspace abstracts the filesystem work done around download attempts.
type Workspace interface {
	// Scan returns every audio-extension file below dir as a sniffed candidate
	Scan(dir string) ([]Candidate, error)

	// MoveUnique moves src to dst, choosing "name (n).ext" when dst exists; it returns the final path
	MoveUnique(src, dst string) (string, error)

	// RemoveAll deletes a directory tree
	RemoveAll(dir string) error

	// MkdirAll creates a directory tree
	MkdirAll(dir string) error
}
