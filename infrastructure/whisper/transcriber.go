package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"media-harvest/domain/content"
	"media-harvest/domain/transcript"
	"media-harvest/infrastructure/command"
)

// Transcriber implements transcript.Transcriber by running whisper.cpp's CLI
type Transcriber struct {
	binary  string
	model   string
	threads int
	runner  command.CommandRunner
}

// Option is a functional option for configuring Transcriber
type Option func(*Transcriber)

// WithBinary sets the whisper-cli executable
func WithBinary(path string) Option {
	return func(t *Transcriber) {
		t.binary = path
	}
}

// WithThreads sets the number of decoding threads
func WithThreads(n int) Option {
	return func(t *Transcriber) {
		if n > 0 {
			t.threads = n
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner command.CommandRunner) Option {
	return func(t *Transcriber) {
		t.runner = runner
	}
}

// NewTranscriber creates a transcriber using the ggml model at modelPath
func NewTranscriber(modelPath string, opts ...Option) *Transcriber {
	t := &Transcriber{
		binary:  "whisper-cli",
		model:   modelPath,
		threads: 4,
		runner:  &command.ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// output mirrors the parts of whisper-cli's -oj file we use
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe implements transcript.Transcriber. The JSON result is written next
// to audioPath and removed afterwards.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, language string) (*transcript.Transcript, error) {
	if _, err := os.Stat(t.model); err != nil {
		return nil, &content.ValidationError{
			Field:      "whisper model",
			Message:    fmt.Sprintf("model not found at %s", t.model),
			Suggestion: "download a ggml model and set whisper.model or WHISPER_MODEL",
		}
	}

	lang := language
	if lang == "" {
		lang = "auto"
	}

	base := strings.TrimSuffix(audioPath, ".wav")
	args := []string{
		"-m", t.model,
		"-f", audioPath,
		"-l", lang,
		"-t", fmt.Sprint(t.threads),
		"-oj",
		"-of", base,
		"-np",
	}
	if err := t.runner.Run(ctx, "", t.binary, args...); err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	jsonPath := base + ".json"
	defer os.Remove(jsonPath)

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper produced no output: %w", err)
	}
	return parseOutput(data, lang)
}

func parseOutput(data []byte, requested string) (*transcript.Transcript, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	result := &transcript.Transcript{Language: out.Result.Language}
	if result.Language == "" && requested != "auto" {
		result.Language = requested
	}

	texts := make([]string, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		result.Segments = append(result.Segments, content.Segment{
			Text:     text,
			Offset:   time.Duration(seg.Offsets.From) * time.Millisecond,
			Duration: time.Duration(seg.Offsets.To-seg.Offsets.From) * time.Millisecond,
		})
	}
	result.Text = strings.Join(texts, "\n")
	return result, nil
}

// Ensure Transcriber implements transcript.Transcriber
var _ transcript.Transcriber = (*Transcriber)(nil)
