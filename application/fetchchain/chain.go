package fetchchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appdownload "media-harvest/application/download"
	"media-harvest/domain/content"
	"media-harvest/domain/download"
	"media-harvest/domain/transcript"
	"media-harvest/infrastructure/logger"
)

// State is a step of the per-item fetch state machine
type State string

const (
	StateTranscriptPrimary  State = "transcript_primary"
	StateTranscriptFallback State = "transcript_fallback"
	StateAudioFallback      State = "audio_fallback"
	StateSuccess            State = "success"
	StateFailure            State = "failure"
)

// Downloader fetches an item's audio track using an ordered list of tools
type Downloader interface {
	Download(ctx context.Context, req appdownload.Request, tools []download.Tool) (string, error)
}

// Chain tries cheap transcript sources before downloading and transcribing audio.
// The order is fixed; unconfigured stages are passed through.
type Chain struct {
	primary     transcript.Provider
	fallback    transcript.Provider
	downloader  Downloader
	tools       []download.Tool
	converter   transcript.AudioConverter
	transcriber transcript.Transcriber
	workDir     string
	language    string
	keepAudio   bool
	log         logger.Logger
}

// Option is a functional option for configuring Chain
type Option func(*Chain)

// WithPrimaryTranscript sets the first transcript provider
func WithPrimaryTranscript(p transcript.Provider) Option {
	return func(c *Chain) {
		c.primary = p
	}
}

// WithFallbackTranscript sets the second transcript provider
func WithFallbackTranscript(p transcript.Provider) Option {
	return func(c *Chain) {
		c.fallback = p
	}
}

// WithAudioFallback enables download + conversion + local transcription
func WithAudioFallback(d Downloader, tools []download.Tool, converter transcript.AudioConverter, transcriber transcript.Transcriber) Option {
	return func(c *Chain) {
		c.downloader = d
		c.tools = tools
		c.converter = converter
		c.transcriber = transcriber
	}
}

// WithLanguage forces the transcription language (empty means auto-detect)
func WithLanguage(lang string) Option {
	return func(c *Chain) {
		c.language = lang
	}
}

// WithKeepAudio keeps downloaded and converted audio files
func WithKeepAudio(keep bool) Option {
	return func(c *Chain) {
		c.keepAudio = keep
	}
}

// New creates a chain whose audio files live below workDir
func New(workDir string, log logger.Logger, opts ...Option) *Chain {
	c := &Chain{
		workDir: workDir,
		log:     log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch runs the state machine for one item. Exhausting every method yields a
// Failure result; an error is only returned when ctx is cancelled.
func (c *Chain) Fetch(ctx context.Context, item content.Item) (content.FetchResult, error) {
	var (
		state  = StateTranscriptPrimary
		errs   []error
		result content.FetchResult
	)

	for state != StateSuccess && state != StateFailure {
		var err error
		switch state {
		case StateTranscriptPrimary:
			result, err = c.fetchTranscript(ctx, c.primary, item)
			state = next(err, StateTranscriptFallback)
		case StateTranscriptFallback:
			result, err = c.fetchTranscript(ctx, c.fallback, item)
			state = next(err, StateAudioFallback)
		case StateAudioFallback:
			result, err = c.transcribeAudio(ctx, item)
			state = next(err, StateFailure)
		}

		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, errStageSkipped) {
			errs = append(errs, err)
		}
	}

	if state == StateFailure {
		if len(errs) == 0 {
			errs = append(errs, errors.New("no fetch methods configured"))
		}
		return content.Failure{
			Item: item,
			Err:  fmt.Errorf("%w: %w", content.ErrAllMethodsExhausted, errors.Join(errs...)),
		}, nil
	}
	return result, nil
}

var errStageSkipped = errors.New("stage not configured")

func next(err error, onFailure State) State {
	if err == nil {
		return StateSuccess
	}
	return onFailure
}

func (c *Chain) fetchTranscript(ctx context.Context, p transcript.Provider, item content.Item) (content.FetchResult, error) {
	if p == nil {
		return nil, errStageSkipped
	}

	t, err := p.Fetch(ctx, item.URL)
	if err != nil {
		switch {
		case errors.Is(err, content.ErrTranscriptNotFound):
			c.log.Emit(logger.INFO, "%s has no transcript for %s", p.Name(), item.ID)
		case errors.Is(err, content.ErrAllKeysRejected):
			c.log.Emit(logger.WARNING, "%s rejected every API key", p.Name())
		default:
			c.log.Emit(logger.WARNING, "%s failed for %s: %v", p.Name(), item.ID, err)
		}
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	c.log.Emit(logger.SUCCESS, "transcript for %s from %s", item.ID, p.Name())
	return content.TranscriptSuccess{
		Item:     item,
		Source:   p.Name(),
		Language: t.Language,
		Segments: t.Segments,
		Text:     t.Text,
	}, nil
}

func (c *Chain) transcribeAudio(ctx context.Context, item content.Item) (content.FetchResult, error) {
	if c.downloader == nil || c.converter == nil || c.transcriber == nil {
		return nil, fmt.Errorf("audio fallback: %w", errStageSkipped)
	}

	audioDir := filepath.Join(c.workDir, "audio")
	audioPath, err := c.downloader.Download(ctx, appdownload.Request{Item: item, OutputDir: audioDir}, c.tools)
	if err != nil {
		return nil, err
	}

	wavPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".16k.wav"
	defer c.removeAudio(audioPath, wavPath)

	if err := c.converter.ToWAV(ctx, audioPath, wavPath); err != nil {
		return nil, &content.ProcessingError{Stage: "convert", Err: err, Suggestion: "make sure ffmpeg is installed"}
	}

	t, err := c.transcriber.Transcribe(ctx, wavPath, c.language)
	if err != nil {
		return nil, &content.ProcessingError{Stage: "transcribe", Err: err, Suggestion: "check the whisper model path"}
	}

	kept := ""
	if c.keepAudio {
		kept = audioPath
	}
	return content.TranscriptionSuccess{
		Item:      item,
		AudioPath: kept,
		Language:  t.Language,
		Text:      t.Text,
	}, nil
}

func (c *Chain) removeAudio(paths ...string) {
	if c.keepAudio {
		return
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			c.log.Emit(logger.DEBUG, "failed to remove %s: %v", p, err)
		}
	}
}
