package transcript

import (
	"context"

	"media-harvest/domain/content"
)

// Transcript is text retrieved from a transcript service or produced locally
type Transcript struct {
	Text     string
	Language string
	Segments []content.Segment
}

// Provider fetches an existing transcript for a video URL.
// Implementations return content.ErrTranscriptNotFound when the video has none.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, url string) (*Transcript, error)
}

// Transcriber turns an audio file into text. An empty language means auto-detect.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Transcript, error)
}

// AudioConverter converts any audio container to 16 kHz mono PCM WAV
type AudioConverter interface {
	ToWAV(ctx context.Context, inputPath, outputPath string) error
}
