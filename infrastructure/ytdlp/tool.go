package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"media-harvest/domain/download"
)

// Tool implements download.Tool by extracting the audio track with yt-dlp
type Tool struct {
	client *Client
}

// NewTool creates a yt-dlp download tool
func NewTool(client *Client) *Tool {
	return &Tool{client: client}
}

// Name implements download.Tool
func (t *Tool) Name() string {
	return "yt-dlp"
}

// Run implements download.Tool
func (t *Tool) Run(ctx context.Context, url, workDir string) error {
	cmd := t.client.command().
		ExtractAudio().
		AudioFormat("m4a").
		NoPlaylist().
		Output(filepath.Join(workDir, "%(id)s.%(ext)s"))

	_, err := t.client.run(ctx, cmd, url)
	return err
}

// CleanupResiduals removes partial downloads yt-dlp leaves on failure
func (t *Tool) CleanupResiduals(workDir string) error {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.Contains(name, ".part-Frag") {
			if err := os.Remove(filepath.Join(workDir, name)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

// InstallHint implements download.Tool
func (t *Tool) InstallHint() string {
	return "install yt-dlp as a backup downloader: pip install -U yt-dlp (or brew install yt-dlp)"
}

// Ensure Tool implements download.Tool
var _ download.Tool = (*Tool)(nil)
