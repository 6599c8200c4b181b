package download

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a container format detected from a file's leading bytes
type Format string

const (
	FormatM4A     Format = "m4a"
	FormatMP3     Format = "mp3"
	FormatAAC     Format = "aac"
	FormatWAV     Format = "wav"
	FormatFLAC    Format = "flac"
	FormatOGG     Format = "ogg"
	FormatHTML    Format = "html"
	FormatJSON    Format = "json"
	FormatUnknown Format = "unknown"
)

// HeaderSize is how many leading bytes are read for sniffing and validation
const HeaderSize = 200

// DefaultMinCandidateBytes rejects placeholder and truncated files
const DefaultMinCandidateBytes = 1000

// AudioExtensions lists the file extensions that are considered download output
var AudioExtensions = []string{".m4a", ".mp3", ".aac", ".wav", ".flac", ".ogg"}

// HasAudioExtension reports whether path ends in one of AudioExtensions
func HasAudioExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Candidate is a file produced by a download tool that has not yet been accepted.
type Candidate struct {
	Path           string
	SizeBytes      int64
	DetectedFormat Format
	IsValid        bool
	// Reason explains a rejection
	Reason string
	header []byte
}

// NewCandidate sniffs the format from header, the first bytes of the file
func NewCandidate(path string, size int64, header []byte) Candidate {
	if len(header) > HeaderSize {
		header = header[:HeaderSize]
	}
	return Candidate{
		Path:           path,
		SizeBytes:      size,
		DetectedFormat: Sniff(header),
		header:         header,
	}
}

// Header returns the leading bytes captured when the candidate was built
func (c Candidate) Header() []byte { return c.header }

func (c Candidate) String() string {
	s := fmt.Sprintf("%s (%d bytes, %s)", filepath.Base(c.Path), c.SizeBytes, c.DetectedFormat)
	if c.Reason != "" {
		s += ": " + c.Reason
	}
	return s
}

// Sniff detects the container format from magic bytes. The file extension is
// never trusted.
func Sniff(header []byte) Format {
	trimmed := trimLeading(header)
	switch {
	case len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")):
		return FormatM4A
	case bytes.HasPrefix(header, []byte("ID3")):
		return FormatMP3
	case bytes.HasPrefix(header, []byte("RIFF")) && len(header) >= 12 && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(header, []byte("OggS")):
		return FormatOGG
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xF6 == 0xF0:
		// ADTS sync word with layer bits 00
		return FormatAAC
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	case isHTML(trimmed):
		return FormatHTML
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return FormatJSON
	}
	return FormatUnknown
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func trimLeading(b []byte) []byte {
	b = bytes.TrimPrefix(b, utf8BOM)
	return bytes.TrimLeft(b, " \t\r\n")
}

func isHTML(b []byte) bool {
	lower := bytes.ToLower(b)
	return bytes.HasPrefix(lower, []byte("<html")) || bytes.HasPrefix(lower, []byte("<!doctype"))
}
