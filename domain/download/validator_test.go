package download

import (
	"bytes"
	"strings"
	"testing"
)

func m4aHeader() []byte {
	h := []byte{0x00, 0x00, 0x00, 0x20}
	h = append(h, []byte("ftypM4A ")...)
	return append(h, bytes.Repeat([]byte{0}, 40)...)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Format
	}{
		{name: "m4a", header: m4aHeader(), want: FormatM4A},
		{name: "mp3 id3", header: []byte("ID3\x04\x00\x00"), want: FormatMP3},
		{name: "mp3 frame", header: []byte{0xFF, 0xFB, 0x90, 0x64}, want: FormatMP3},
		{name: "aac adts", header: []byte{0xFF, 0xF1, 0x50, 0x80}, want: FormatAAC},
		{name: "wav", header: []byte("RIFF\x24\x00\x00\x00WAVEfmt "), want: FormatWAV},
		{name: "flac", header: []byte("fLaC\x00\x00"), want: FormatFLAC},
		{name: "ogg", header: []byte("OggS\x00\x02"), want: FormatOGG},
		{name: "html", header: []byte("<html><body>blocked</body></html>"), want: FormatHTML},
		{name: "doctype with whitespace", header: []byte("\n  <!DOCTYPE html>"), want: FormatHTML},
		{name: "json", header: []byte(`{"code":-352}`), want: FormatJSON},
		{name: "empty", header: nil, want: FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.header); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(DefaultMinCandidateBytes)

	tests := []struct {
		name       string
		size       int64
		header     []byte
		wantValid  bool
		wantReason string
	}{
		{name: "real audio", size: 2_000_000, header: m4aHeader(), wantValid: true},
		{name: "too small", size: 40, header: m4aHeader(), wantReason: "smaller than 1000 bytes"},
		{name: "large html", size: 2_000_000, header: []byte("<html><head>"), wantReason: "HTML document"},
		{name: "uppercase doctype", size: 5_000_000, header: []byte("<!DOCTYPE html>"), wantReason: "HTML document"},
		{name: "iframe fragment", size: 5000, header: []byte(`<div><iframe src="x">`), wantReason: "<iframe>"},
		{name: "json error", size: 5000, header: []byte(`{"error":"forbidden"}`), wantReason: "JSON error"},
		{name: "json without error key", size: 5000, header: []byte(`{"ok":true}`), wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(NewCandidate("/tmp/a.m4a", tt.size, tt.header))
			if got.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (reason %q)", got.IsValid, tt.wantValid, got.Reason)
			}
			if tt.wantReason != "" && !strings.Contains(got.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to contain %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidator_HTMLRejectedAtAnySize(t *testing.T) {
	v := NewValidator(1)
	for _, size := range []int64{1, 1000, 1 << 20, 1 << 30} {
		for _, header := range []string{"<html", "<!DOCTYPE"} {
			got := v.Validate(NewCandidate("x.mp3", size, []byte(header)))
			if got.IsValid {
				t.Errorf("%q with size %d should be rejected", header, size)
			}
		}
	}
}

func TestCandidate_String(t *testing.T) {
	c := NewValidator(0).Validate(NewCandidate("/work/a/track.m4a", 40, m4aHeader()))
	want := "track.m4a (40 bytes, m4a): smaller than 1000 bytes"
	if c.String() != want {
		t.Errorf("String() = %q, want %q", c.String(), want)
	}
}

func TestHasAudioExtension(t *testing.T) {
	for _, p := range []string{"a.m4a", "b.MP3", "c.flac", "d.ogg"} {
		if !HasAudioExtension(p) {
			t.Errorf("%s should be an audio file", p)
		}
	}
	for _, p := range []string{"a.mp4", "b.json", "noext"} {
		if HasAudioExtension(p) {
			t.Errorf("%s should not be an audio file", p)
		}
	}
}
