//go:build integration

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	appdownload "media-harvest/application/download"
	"media-harvest/application/fetchchain"
	"media-harvest/domain/content"
	"media-harvest/domain/download"
	"media-harvest/domain/transcript"
	"media-harvest/infrastructure/filesystem"
	"media-harvest/infrastructure/logger"

	"github.com/cucumber/godog"
)

// scriptedTool writes a fixed payload into the attempt directory
type scriptedTool struct {
	name     string
	fileName string
	payload  []byte
	runs     int
}

func (s *scriptedTool) Name() string { return s.name }

func (s *scriptedTool) Run(ctx context.Context, url, workDir string) error {
	s.runs++
	if s.payload == nil {
		return errors.New("exit status 1")
	}
	return os.WriteFile(filepath.Join(workDir, s.fileName), s.payload, 0644)
}

func (s *scriptedTool) CleanupResiduals(workDir string) error { return nil }

func (s *scriptedTool) InstallHint() string { return "install " + s.name }

// recordingConverter copies the input and remembers what it was given
type recordingConverter struct {
	input []byte
}

func (r *recordingConverter) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	r.input = data
	return os.WriteFile(outputPath, data, 0644)
}

type cannedTranscriber struct {
	text string
}

func (c *cannedTranscriber) Transcribe(ctx context.Context, audioPath, language string) (*transcript.Transcript, error) {
	return &transcript.Transcript{Text: c.text, Language: "zh"}, nil
}

func audioPayload(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0, 0, 0, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '})
	return data
}

func htmlPayload(size int) []byte {
	page := []byte("<!DOCTYPE html><html><head><title>Access denied</title></head><body>")
	return append(page, bytes.Repeat([]byte(" "), size)...)
}

type downloadContext struct {
	tempDir   string
	tools     []*scriptedTool
	converter *recordingConverter
	result    content.FetchResult
	err       error
}

var SharedDownloadContext = &downloadContext{}

func InitializeDownloadScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedDownloadContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "download-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.tools = nil
		testCtx.converter = &recordingConverter{}
		testCtx.result = nil
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		SharedDownloadContext = &downloadContext{}
		return c, nil
	})

	ctx.Step(`^downloader "([^"]*)" produces an HTML page of (\d+) bytes named "([^"]*)"$`, testCtx.downloaderProducesAnHTMLPage)
	ctx.Step(`^downloader "([^"]*)" produces audio of (\d+) bytes named "([^"]*)"$`, testCtx.downloaderProducesAudio)
	ctx.Step(`^downloader "([^"]*)" fails$`, testCtx.downloaderFails)
	ctx.Step(`^I fetch a Bilibili video through the audio fallback$`, testCtx.iFetchABilibiliVideo)
	ctx.Step(`^the video should be transcribed locally$`, testCtx.theVideoShouldBeTranscribedLocally)
	ctx.Step(`^the transcribed audio should be (\d+) bytes of real audio$`, testCtx.theTranscribedAudioShouldBe)
	ctx.Step(`^downloader "([^"]*)" should have run (\d+) times?$`, testCtx.downloaderShouldHaveRun)
	ctx.Step(`^the fetch should fail mentioning "([^"]*)"$`, testCtx.theFetchShouldFailMentioning)
	ctx.Step(`^no attempt directories should remain$`, testCtx.noAttemptDirectoriesShouldRemain)
}

func (d *downloadContext) addTool(name, fileName string, payload []byte) {
	d.tools = append(d.tools, &scriptedTool{name: name, fileName: fileName, payload: payload})
}

func (d *downloadContext) downloaderProducesAnHTMLPage(name string, size int, fileName string) error {
	d.addTool(name, fileName, htmlPayload(size))
	return nil
}

func (d *downloadContext) downloaderProducesAudio(name string, size int, fileName string) error {
	d.addTool(name, fileName, audioPayload(size))
	return nil
}

func (d *downloadContext) downloaderFails(name string) error {
	d.addTool(name, "", nil)
	return nil
}

func (d *downloadContext) iFetchABilibiliVideo() error {
	log := logger.NewNop()
	fallback := appdownload.NewFallback(filesystem.NewWorkspace(), filepath.Join(d.tempDir, "attempts"), log,
		appdownload.WithValidator(download.NewValidator(download.DefaultMinCandidateBytes)))

	tools := make([]download.Tool, 0, len(d.tools))
	for _, t := range d.tools {
		tools = append(tools, t)
	}
	chain := fetchchain.New(filepath.Join(d.tempDir, "work"), log,
		fetchchain.WithAudioFallback(fallback, tools, d.converter, &cannedTranscriber{text: "spoken words"}))

	item, err := content.NewItem(content.SourceBilibili, "BV1xx411c7mD", "demo",
		"https://www.bilibili.com/video/BV1xx411c7mD", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		return err
	}
	d.result, d.err = chain.Fetch(context.Background(), item)
	return nil
}

func (d *downloadContext) theVideoShouldBeTranscribedLocally() error {
	if d.err != nil {
		return fmt.Errorf("unexpected error: %v", d.err)
	}
	success, ok := d.result.(content.TranscriptionSuccess)
	if !ok {
		return fmt.Errorf("expected a local transcription, got %#v", d.result)
	}
	if success.Text != "spoken words" {
		return fmt.Errorf("unexpected text %q", success.Text)
	}
	return nil
}

func (d *downloadContext) theTranscribedAudioShouldBe(size int) error {
	if len(d.converter.input) != size {
		return fmt.Errorf("expected %d bytes to be converted, got %d", size, len(d.converter.input))
	}
	if download.Sniff(d.converter.input) != download.FormatM4A {
		return fmt.Errorf("converted file is not audio")
	}
	return nil
}

func (d *downloadContext) downloaderShouldHaveRun(name string, times int) error {
	for _, t := range d.tools {
		if t.name == name {
			if t.runs != times {
				return fmt.Errorf("expected %s to run %d times, ran %d", name, times, t.runs)
			}
			return nil
		}
	}
	return fmt.Errorf("unknown downloader %q", name)
}

func (d *downloadContext) theFetchShouldFailMentioning(expected string) error {
	if d.err != nil {
		return fmt.Errorf("expected a failure result, got error %v", d.err)
	}
	failure, ok := d.result.(content.Failure)
	if !ok {
		return fmt.Errorf("expected a failure, got %#v", d.result)
	}
	if !strings.Contains(failure.Err.Error(), expected) {
		return fmt.Errorf("expected failure to mention %q, got: %v", expected, failure.Err)
	}
	return nil
}

func (d *downloadContext) noAttemptDirectoriesShouldRemain() error {
	entries, err := os.ReadDir(filepath.Join(d.tempDir, "attempts"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if len(entries) != 0 {
		return fmt.Errorf("expected attempt directories to be removed, found %d", len(entries))
	}
	return nil
}
