package content

import "time"

// FetchResult is the outcome of fetching one item. The concrete type is one of
// TranscriptSuccess, TranscriptionSuccess or Failure.
type FetchResult interface {
	FetchedItem() Item
	Succeeded() bool
	isFetchResult()
}

// Segment is one timed piece of a transcript
type Segment struct {
	Text     string        `json:"text"`
	Offset   time.Duration `json:"offset"`
	Duration time.Duration `json:"duration"`
}

// TranscriptSuccess means an existing transcript was retrieved without downloading media.
type TranscriptSuccess struct {
	Item       Item
	Source     string
	Language   string
	Segments   []Segment
	Text       string
	OutputPath string
}

// TranscriptionSuccess means audio was downloaded and transcribed locally.
type TranscriptionSuccess struct {
	Item       Item
	AudioPath  string
	Language   string
	Text       string
	OutputPath string
}

// Failure means every fetch method failed for the item.
type Failure struct {
	Item Item
	Err  error
}

func (r TranscriptSuccess) FetchedItem() Item    { return r.Item }
func (r TranscriptionSuccess) FetchedItem() Item { return r.Item }
func (r Failure) FetchedItem() Item              { return r.Item }

func (TranscriptSuccess) Succeeded() bool    { return true }
func (TranscriptionSuccess) Succeeded() bool { return true }
func (Failure) Succeeded() bool              { return false }

func (TranscriptSuccess) isFetchResult()    {}
func (TranscriptionSuccess) isFetchResult() {}
func (Failure) isFetchResult()              {}

// ResultText returns the text carried by a successful result
func ResultText(r FetchResult) string {
	switch v := r.(type) {
	case TranscriptSuccess:
		return v.Text
	case TranscriptionSuccess:
		return v.Text
	default:
		return ""
	}
}

// WithOutputPath returns a copy of a successful result pointing at the written file
func WithOutputPath(r FetchResult, path string) FetchResult {
	switch v := r.(type) {
	case TranscriptSuccess:
		v.OutputPath = path
		return v
	case TranscriptionSuccess:
		v.OutputPath = path
		return v
	default:
		return r
	}
}
