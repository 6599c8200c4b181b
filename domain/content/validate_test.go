package content

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "hello", want: "hello"},
		{name: "reserved characters", input: `a<b>c:d"e/f\g|h?i*j`, want: "a_b_c_d_e_f_g_h_i_j"},
		{name: "whitespace runs", input: "  two   words\there ", want: "two_words_here"},
		{name: "trailing dots", input: "name...", want: "name"},
		{name: "empty", input: "", want: "untitled"},
		{name: "only separators", input: "???", want: "untitled"},
		{name: "unicode kept", input: "中文 标题", want: "中文_标题"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("é", 300))
	if n := len([]rune(got)); n != MaxFilenameLength {
		t.Errorf("expected %d runes, got %d", MaxFilenameLength, n)
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "valid", input: "2024-01-15"},
		{name: "today", input: "2025-06-15"},
		{name: "earliest", input: "2005-01-01"},
		{name: "wrong shape", input: "2024/01/15", wantErr: "YYYY-MM-DD"},
		{name: "short month", input: "2024-1-15", wantErr: "YYYY-MM-DD"},
		{name: "impossible day", input: "2024-02-30", wantErr: "not a valid calendar date"},
		{name: "too early", input: "2004-12-31", wantErr: "too early"},
		{name: "future", input: "2025-06-16", wantErr: "future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDate("start date", tt.input, now)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDateRange_Contains(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	r, err := ParseDateRange("2024-01-10", "2024-01-12", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "before start", at: time.Date(2024, 1, 9, 23, 59, 0, 0, time.UTC), want: false},
		{name: "start of range", at: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), want: true},
		{name: "late on end day", at: time.Date(2024, 1, 12, 23, 59, 0, 0, time.UTC), want: true},
		{name: "after end", at: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestParseDateRange_EndBeforeStart(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if _, err := ParseDateRange("2024-02-01", "2024-01-01", now); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestValidateTwitterUsername(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "jack", want: "jack"},
		{input: "@elon_musk", want: "elon_musk"},
		{input: "a", want: "a"},
		{input: "", wantErr: true},
		{input: "this_is_too_long_name", wantErr: true},
		{input: "bad-name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidateTwitterUsername(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBilibiliUID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "12345", want: 12345},
		{input: "https://space.bilibili.com/946974", want: 946974},
		{input: "https://space.bilibili.com/946974/video", want: 946974},
		{input: "https://example.com/user/42/", want: 42},
		{input: "not-a-uid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBilibiliUID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseYouTubeChannel(t *testing.T) {
	tests := []struct {
		input      string
		identifier string
		channelID  string
		videosURL  string
		wantErr    bool
	}{
		{input: "@mkbhd", identifier: "@mkbhd", videosURL: "https://www.youtube.com/@mkbhd/videos"},
		{input: "mkbhd", identifier: "@mkbhd", videosURL: "https://www.youtube.com/@mkbhd/videos"},
		{input: "https://www.youtube.com/@mkbhd/featured", identifier: "@mkbhd", videosURL: "https://www.youtube.com/@mkbhd/videos"},
		{input: "https://www.youtube.com/c/SomeName", identifier: "SomeName", videosURL: "https://www.youtube.com/c/SomeName/videos"},
		{input: "https://www.youtube.com/user/legacy", identifier: "legacy", videosURL: "https://www.youtube.com/user/legacy/videos"},
		{input: "https://www.youtube.com/channel/UC123abc", identifier: "UC123abc", channelID: "UC123abc", videosURL: "https://www.youtube.com/channel/UC123abc/videos"},
		{input: "https://www.youtube.com/", wantErr: true},
		{input: "has spaces", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseYouTubeChannel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Identifier != tt.identifier || got.ChannelID != tt.channelID || got.VideosURL != tt.videosURL {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestExtractIDs(t *testing.T) {
	if id, ok := ExtractYouTubeVideoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=5"); !ok || id != "dQw4w9WgXcQ" {
		t.Errorf("watch url: got %q %v", id, ok)
	}
	if id, ok := ExtractYouTubeVideoID("https://youtu.be/dQw4w9WgXcQ"); !ok || id != "dQw4w9WgXcQ" {
		t.Errorf("short url: got %q %v", id, ok)
	}
	if _, ok := ExtractYouTubeVideoID("https://example.com"); ok {
		t.Error("expected no id for unrelated url")
	}
	if id, ok := ExtractBilibiliBVID("https://www.bilibili.com/video/BV1xx411c7mD?p=1"); !ok || id != "BV1xx411c7mD" {
		t.Errorf("bvid: got %q %v", id, ok)
	}
}

func TestDetectSource(t *testing.T) {
	if s, err := DetectSource("https://youtu.be/abc"); err != nil || s != SourceYouTube {
		t.Errorf("youtube: got %v %v", s, err)
	}
	if s, err := DetectSource("https://www.bilibili.com/video/BV1"); err != nil || s != SourceBilibili {
		t.Errorf("bilibili: got %v %v", s, err)
	}
	if _, err := DetectSource("https://vimeo.com/1"); err == nil {
		t.Error("expected error for unsupported url")
	}
}
