package whisper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-harvest/domain/content"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `{
  "result": {"language": "zh"},
  "transcription": [
    {"offsets": {"from": 0, "to": 2500}, "text": " 大家好"},
    {"offsets": {"from": 2500, "to": 2600}, "text": "  "},
    {"offsets": {"from": 2600, "to": 5000}, "text": " 今天聊聊Go"}
  ]
}`

// mockRunner writes a canned -oj file where whisper-cli would
type mockRunner struct {
	args       []string
	output     string
	shouldFail bool
}

func (m *mockRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	m.args = args
	if m.shouldFail {
		return errors.New("exit status 1")
	}
	for i, a := range args {
		if a == "-of" {
			return os.WriteFile(args[i+1]+".json", []byte(m.output), 0644)
		}
	}
	return nil
}

func (m *mockRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return nil, nil
}

func modelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ggml-base.bin")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0644))
	return path
}

func TestTranscribe(t *testing.T) {
	runner := &mockRunner{output: sampleOutput}
	tr := NewTranscriber(modelFile(t), WithCommandRunner(runner), WithThreads(8))
	wav := filepath.Join(t.TempDir(), "BV1.16k.wav")

	result, err := tr.Transcribe(context.Background(), wav, "")
	require.NoError(t, err)

	assert.Equal(t, "zh", result.Language)
	assert.Equal(t, "大家好\n今天聊聊Go", result.Text)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, 2600*time.Millisecond, result.Segments[1].Offset)
	assert.Equal(t, 2400*time.Millisecond, result.Segments[1].Duration)

	assert.Contains(t, runner.args, "auto")
	assert.Contains(t, runner.args, "8")
	_, statErr := os.Stat(filepath.Join(filepath.Dir(wav), "BV1.16k.json"))
	assert.True(t, os.IsNotExist(statErr), "json output should be removed")
}

func TestTranscribe_ForcedLanguage(t *testing.T) {
	runner := &mockRunner{output: `{"result": {}, "transcription": [{"offsets": {"from": 0, "to": 1}, "text": "hi"}]}`}
	tr := NewTranscriber(modelFile(t), WithCommandRunner(runner))

	result, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "a.wav"), "en")
	require.NoError(t, err)
	assert.Equal(t, "en", result.Language)
	assert.Contains(t, runner.args, "en")
}

func TestTranscribe_MissingModel(t *testing.T) {
	tr := NewTranscriber(filepath.Join(t.TempDir(), "missing.bin"), WithCommandRunner(&mockRunner{}))

	_, err := tr.Transcribe(context.Background(), "a.wav", "")
	var ve *content.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "WHISPER_MODEL")
}

func TestTranscribe_RunFailure(t *testing.T) {
	tr := NewTranscriber(modelFile(t), WithCommandRunner(&mockRunner{shouldFail: true}))

	_, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "a.wav"), "")
	assert.ErrorContains(t, err, "whisper transcription failed")
}

func TestParseOutput_Invalid(t *testing.T) {
	_, err := parseOutput([]byte("{"), "auto")
	assert.Error(t, err)
}
