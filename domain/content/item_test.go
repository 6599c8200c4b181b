package content

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNewItem(t *testing.T) {
	published := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	meta := map[string]any{"duration": 61}

	item, err := NewItem(SourceYouTube, "abc123", "A title", "https://youtu.be/abc123", published, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta["duration"] = 0
	if item.Metadata["duration"] != 61 {
		t.Error("item metadata should not alias the caller's map")
	}
	if item.PublishedDate() != "2024-03-09" {
		t.Errorf("expected published date 2024-03-09, got %q", item.PublishedDate())
	}
}

func TestNewItem_Validation(t *testing.T) {
	tests := []struct {
		name string
		id   string
		url  string
	}{
		{name: "missing id", id: "", url: "https://example.com"},
		{name: "missing url", id: "x", url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewItem(SourceTwitter, tt.id, "", tt.url, time.Time{}, nil)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestItem_TranscriptFilename(t *testing.T) {
	item := Item{ID: "BV1xx411c7mD", Title: "Hello: World?", PublishedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	if got, want := item.TranscriptFilename(), "2024-01-02_Hello_World [BV1xx411c7mD].txt"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	untitled := Item{ID: "vid"}
	if got, want := untitled.TranscriptFilename(), "vid [vid].txt"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	long := Item{ID: "id1", Title: strings.Repeat("x", 500)}
	if n := len([]rune(long.TranscriptFilename())); n > MaxFilenameLength {
		t.Errorf("file name too long: %d runes", n)
	}
}

func TestFetchResult_Variants(t *testing.T) {
	item := Item{ID: "1"}
	results := []FetchResult{
		TranscriptSuccess{Item: item, Text: "from transcript"},
		TranscriptionSuccess{Item: item, Text: "from audio"},
		Failure{Item: item, Err: fmt.Errorf("boom")},
	}

	var kinds []string
	for _, r := range results {
		switch v := r.(type) {
		case TranscriptSuccess:
			kinds = append(kinds, "transcript:"+v.Text)
		case TranscriptionSuccess:
			kinds = append(kinds, "transcription:"+v.Text)
		case Failure:
			kinds = append(kinds, "failure:"+v.Err.Error())
		}
	}

	want := "transcript:from transcript,transcription:from audio,failure:boom"
	if got := strings.Join(kinds, ","); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if results[2].Succeeded() || !results[0].Succeeded() {
		t.Error("Succeeded() mismatch")
	}

	withPath := WithOutputPath(results[1], "/tmp/out.txt").(TranscriptionSuccess)
	if withPath.OutputPath != "/tmp/out.txt" {
		t.Errorf("expected output path to be set, got %q", withPath.OutputPath)
	}
}

func TestNetworkError_Transient(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{status: 0, want: true},
		{status: 429, want: true},
		{status: 503, want: true},
		{status: 401, want: false},
		{status: 404, want: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &NetworkError{Op: "fetch", StatusCode: tt.status, Err: errors.New("x")})
			if got := IsTransient(err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
