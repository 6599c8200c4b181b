package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"media-harvest/application/pipeline"
	"media-harvest/domain/content"
)

// File names written into a source's output directory
const (
	VideoListFile  = "video_list.json"
	TweetsFile     = "tweets.json"
	SummaryFile    = "run_summary.json"
	TranscriptsDir = "transcripts"
)

// Writer renders run artifacts into one output directory
type Writer struct {
	dir   string
	clock func() time.Time
}

// Option is a functional option for configuring Writer
type Option func(*Writer)

// WithClock overrides the time stamped into generated files
func WithClock(clock func() time.Time) Option {
	return func(w *Writer) {
		w.clock = clock
	}
}

// NewWriter creates a writer for dir
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, clock: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the output directory
func (w *Writer) Dir() string { return w.dir }

// Result is one entry of a run summary
type Result struct {
	Kind       string `json:"kind"`
	ItemID     string `json:"item_id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Source     string `json:"source,omitempty"`
	Language   string `json:"language,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	AudioPath  string `json:"audio_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewResult flattens a fetch result for serialization
func NewResult(r content.FetchResult) Result {
	item := r.FetchedItem()
	out := Result{ItemID: item.ID, Title: item.Title, URL: item.URL}
	switch v := r.(type) {
	case content.TranscriptSuccess:
		out.Kind = "transcript"
		out.Source = v.Source
		out.Language = v.Language
		out.OutputPath = v.OutputPath
	case content.TranscriptionSuccess:
		out.Kind = "transcription"
		out.Language = v.Language
		out.OutputPath = v.OutputPath
		out.AudioPath = v.AudioPath
	case content.Failure:
		out.Kind = "failure"
		if v.Err != nil {
			out.Error = v.Err.Error()
		}
	}
	return out
}

// WriteSnapshot saves the listed items as {"<infoKey>":info,"<listKey>":items,"generated_at":...}
func (w *Writer) WriteSnapshot(fileName, infoKey string, info any, listKey string, items []content.Item) (string, error) {
	if items == nil {
		items = []content.Item{}
	}
	doc := map[string]any{
		infoKey:        info,
		listKey:        items,
		"generated_at": w.clock().Format(time.RFC3339),
	}
	return w.writeJSON(fileName, doc)
}

// WriteSummary saves run statistics and per-item results to run_summary.json.
// A run that went through its whole list is a success even when some items
// failed; the failures are counted in run_stats.
func (w *Writer) WriteSummary(infoKey string, info any, summary *pipeline.Summary) (string, error) {
	results := make([]Result, 0, len(summary.Results))
	for _, r := range summary.Results {
		results = append(results, NewResult(r))
	}
	doc := map[string]any{
		"success":      !summary.Interrupted && !summary.Aborted,
		"interrupted":  summary.Interrupted,
		infoKey:        info,
		"run_stats":    summary.Stats,
		"results":      results,
		"generated_at": w.clock().Format(time.RFC3339),
	}
	return w.writeJSON(SummaryFile, doc)
}

// WriteTranscript saves text as transcripts/<date>_<title> [<id>].txt
func (w *Writer) WriteTranscript(item content.Item, text string) (string, error) {
	dir := filepath.Join(w.dir, TranscriptsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create transcripts directory: %w", err)
	}
	path := filepath.Join(dir, item.TranscriptFilename())
	if err := writeAtomic(path, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}

func (w *Writer) writeJSON(name string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(w.dir, name)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// writeAtomic replaces path with data through a temp file in the same directory
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
