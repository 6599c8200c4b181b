package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-harvest/domain/content"
	"media-harvest/domain/transcript"
)

// DefaultSubtitleLanguages is the preference order for subtitle tracks
var DefaultSubtitleLanguages = []string{"zh", "zh-Hans", "zh-Hant", "en"}

// SubtitleProvider implements transcript.Provider using yt-dlp's subtitle
// download. Manual subtitles win over auto-generated ones for the same language.
type SubtitleProvider struct {
	client    *Client
	languages []string
	tempRoot  string
}

// NewSubtitleProvider creates a provider that writes temporary files below tempRoot
func NewSubtitleProvider(client *Client, tempRoot string, languages ...string) *SubtitleProvider {
	if len(languages) == 0 {
		languages = DefaultSubtitleLanguages
	}
	return &SubtitleProvider{client: client, languages: languages, tempRoot: tempRoot}
}

// Name implements transcript.Provider
func (p *SubtitleProvider) Name() string {
	return "yt-dlp subtitles"
}

// Fetch implements transcript.Provider
func (p *SubtitleProvider) Fetch(ctx context.Context, url string) (*transcript.Transcript, error) {
	if err := os.MkdirAll(p.tempRoot, 0755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(p.tempRoot, "subs-")
	if err != nil {
		return nil, fmt.Errorf("failed to create subtitle directory: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := p.client.command().
		SkipDownload().
		WriteSubs().
		WriteAutoSubs().
		SubLangs(strings.Join(p.languages, ",")).
		SubFormat("vtt").
		Output(filepath.Join(dir, "%(id)s.%(ext)s"))

	if _, err := p.client.run(ctx, cmd, url); err != nil {
		return nil, err
	}

	path, lang := p.pick(dir)
	if path == "" {
		return nil, fmt.Errorf("%w: no subtitles in %s", content.ErrTranscriptNotFound, strings.Join(p.languages, ", "))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitles: %w", err)
	}
	segments := ParseVTT(string(data))
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: subtitle file is empty", content.ErrTranscriptNotFound)
	}

	return &transcript.Transcript{
		Text:     JoinSegments(segments),
		Language: lang,
		Segments: segments,
	}, nil
}

// pick returns the downloaded .vtt file for the most preferred language
func (p *SubtitleProvider) pick(dir string) (string, string) {
	files, _ := filepath.Glob(filepath.Join(dir, "*.vtt"))
	for _, lang := range p.languages {
		suffix := "." + lang + ".vtt"
		for _, f := range files {
			if strings.HasSuffix(f, suffix) {
				return f, lang
			}
		}
	}
	if len(files) > 0 {
		parts := strings.Split(filepath.Base(files[0]), ".")
		lang := ""
		if len(parts) >= 3 {
			lang = parts[len(parts)-2]
		}
		return files[0], lang
	}
	return "", ""
}

// Ensure SubtitleProvider implements transcript.Provider
var _ transcript.Provider = (*SubtitleProvider)(nil)
