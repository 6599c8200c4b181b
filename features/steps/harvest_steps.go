//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"media-harvest/application/fetchchain"
	"media-harvest/application/harvest"
	"media-harvest/cmd"
	"media-harvest/domain/content"
	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/ledgerstore"
	"media-harvest/infrastructure/logger"
	"media-harvest/infrastructure/report"
	"media-harvest/infrastructure/supadata"

	"github.com/cucumber/godog"
)

// stubChannelLister returns a fixed upload list
type stubChannelLister struct {
	items []content.Item
}

func (s *stubChannelLister) ListChannel(ctx context.Context, ref content.ChannelRef, max int) ([]content.Item, error) {
	if max > 0 && len(s.items) > max {
		return s.items[:max], nil
	}
	return s.items, nil
}

// transcriptAPI is a fake Supadata endpoint
type transcriptAPI struct {
	mu       sync.Mutex
	status   int
	videoIDs []string
}

func (a *transcriptAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	videoURL, _ := url.Parse(r.URL.Query().Get("url"))
	id := videoURL.Query().Get("v")
	a.videoIDs = append(a.videoIDs, id)

	if a.status != http.StatusOK {
		w.WriteHeader(a.status)
		w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}
	fmt.Fprintf(w, `{"lang":"en","content":[{"text":"transcript of %s","offset":0,"duration":1000}]}`, id)
}

func (a *transcriptAPI) requested() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, id := range a.videoIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

type harvestContext struct {
	tempDir      string
	outputRoot   string
	channel      string
	lister       *stubChannelLister
	api          *transcriptAPI
	server       *httptest.Server
	resetCorrupt bool
	corruptData  []byte
	output       *bytes.Buffer
	err          error
}

var SharedHarvestContext = &harvestContext{}

func InitializeHarvestScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedHarvestContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "harvest-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.outputRoot = filepath.Join(tempDir, "out")
		testCtx.lister = &stubChannelLister{}
		testCtx.api = &transcriptAPI{status: http.StatusOK}
		testCtx.server = httptest.NewServer(testCtx.api)
		testCtx.resetCorrupt = false
		testCtx.corruptData = nil
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.server != nil {
			testCtx.server.Close()
		}
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		SharedHarvestContext = &harvestContext{}
		return c, nil
	})

	ctx.Step(`^a YouTube channel "([^"]*)" with videos "([^"]*)"$`, testCtx.aYouTubeChannelWithVideos)
	ctx.Step(`^the transcript API rejects every key$`, testCtx.theTranscriptAPIRejectsEveryKey)
	ctx.Step(`^the ledger already lists "([^"]*)" as completed$`, testCtx.theLedgerAlreadyListsAsCompleted)
	ctx.Step(`^the ledger already lists "([^"]*)" as failed$`, testCtx.theLedgerAlreadyListsAsFailed)
	ctx.Step(`^the ledger file is corrupt$`, testCtx.theLedgerFileIsCorrupt)
	ctx.Step(`^I harvest the channel$`, testCtx.iHarvestTheChannel)
	ctx.Step(`^I harvest the channel resetting a corrupt ledger$`, testCtx.iHarvestTheChannelResettingACorruptLedger)
	ctx.Step(`^I run ledger show$`, testCtx.iRunLedgerShow)
	ctx.Step(`^I run ledger reset-failed$`, testCtx.iRunLedgerResetFailed)

	ctx.Step(`^the harvest should succeed$`, testCtx.theHarvestShouldSucceed)
	ctx.Step(`^the harvest should fail with "([^"]*)"$`, testCtx.theHarvestShouldFailWith)
	ctx.Step(`^the transcript API should have been asked for "([^"]*)"$`, testCtx.theTranscriptAPIShouldHaveBeenAskedFor)
	ctx.Step(`^the ledger should list "([^"]*)" as completed$`, testCtx.theLedgerShouldListAsCompleted)
	ctx.Step(`^the ledger should list "([^"]*)" as failed$`, testCtx.theLedgerShouldListAsFailed)
	ctx.Step(`^the ledger should list no failed items$`, testCtx.theLedgerShouldListNoFailedItems)
	ctx.Step(`^the corrupt ledger should be left in place$`, testCtx.theCorruptLedgerShouldBeLeftInPlace)
	ctx.Step(`^the corrupt ledger should be moved aside$`, testCtx.theCorruptLedgerShouldBeMovedAside)
	ctx.Step(`^the output directory should contain "([^"]*)"$`, testCtx.theOutputDirectoryShouldContain)
	ctx.Step(`^the transcript for "([^"]*)" should contain "([^"]*)"$`, testCtx.theTranscriptForShouldContain)
	ctx.Step(`^the harvest output should contain "([^"]*)"$`, testCtx.theHarvestOutputShouldContain)
}

func (h *harvestContext) channelDir() string {
	return filepath.Join(h.outputRoot, "youtube_"+strings.TrimPrefix(h.channel, "@"))
}

func (h *harvestContext) store() *ledgerstore.JSONStore {
	return ledgerstore.ForDirectory(h.channelDir(), logger.NewNop(), ledgerstore.WithResetCorrupt(h.resetCorrupt))
}

func (h *harvestContext) service() *harvest.Service {
	open := func(dir string) ledger.Store {
		return ledgerstore.ForDirectory(dir, logger.NewNop(), ledgerstore.WithResetCorrupt(h.resetCorrupt))
	}
	return harvest.NewService(h.outputRoot, open, logger.NewNop(), h.output)
}

func (h *harvestContext) fetcher() harvest.Fetcher {
	provider := supadata.NewProvider([]string{"key-aaaa1111", "key-bbbb2222"}, logger.NewNop(),
		supadata.WithBaseURL(h.server.URL),
		supadata.WithHTTPClient(h.server.Client()),
		supadata.WithRateLimit(0))
	return fetchchain.New(filepath.Join(h.tempDir, "work"), logger.NewNop(), fetchchain.WithPrimaryTranscript(provider))
}

func splitIDs(ids string) []string {
	var out []string
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// --- Given ---

func (h *harvestContext) aYouTubeChannelWithVideos(channel, ids string) error {
	h.channel = channel
	published := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range splitIDs(ids) {
		item, err := content.NewItem(content.SourceYouTube, id, "Video "+id,
			"https://www.youtube.com/watch?v="+id, published.AddDate(0, 0, -i), nil)
		if err != nil {
			return err
		}
		h.lister.items = append(h.lister.items, item)
	}
	return nil
}

func (h *harvestContext) theTranscriptAPIRejectsEveryKey() error {
	h.api.status = http.StatusUnauthorized
	return nil
}

func (h *harvestContext) seedLedger(mark func(*ledger.Status, string), ids string) error {
	if err := os.MkdirAll(h.channelDir(), 0755); err != nil {
		return err
	}
	store := h.store()
	status, err := store.Load()
	if err != nil {
		return err
	}
	for _, id := range splitIDs(ids) {
		mark(status, id)
	}
	return store.Save(status)
}

func (h *harvestContext) theLedgerAlreadyListsAsCompleted(ids string) error {
	return h.seedLedger((*ledger.Status).MarkCompleted, ids)
}

func (h *harvestContext) theLedgerAlreadyListsAsFailed(ids string) error {
	return h.seedLedger((*ledger.Status).MarkFailed, ids)
}

func (h *harvestContext) theLedgerFileIsCorrupt() error {
	if err := os.MkdirAll(h.channelDir(), 0755); err != nil {
		return err
	}
	h.corruptData = []byte(`{"completed": ["v1",`)
	return os.WriteFile(h.store().Path(), h.corruptData, 0644)
}

// --- When ---

func (h *harvestContext) iHarvestTheChannel() error {
	h.output.Reset()
	h.err = cmd.RunYouTubeWithDependencies(context.Background(), h.service(), h.lister, h.fetcher(),
		harvest.YouTubeInput{Channel: h.channel}, h.output)
	return nil
}

func (h *harvestContext) iHarvestTheChannelResettingACorruptLedger() error {
	h.resetCorrupt = true
	return h.iHarvestTheChannel()
}

func (h *harvestContext) iRunLedgerShow() error {
	h.output.Reset()
	h.err = cmd.RunLedgerShowWithDependencies(h.store(), h.output)
	return nil
}

func (h *harvestContext) iRunLedgerResetFailed() error {
	h.output.Reset()
	h.err = cmd.RunLedgerResetFailedWithDependencies(h.store(), h.output)
	return nil
}

// --- Then ---

func (h *harvestContext) theHarvestShouldSucceed() error {
	if h.err != nil {
		return fmt.Errorf("expected harvest to succeed but got: %v\noutput:\n%s", h.err, h.output.String())
	}
	return nil
}

func (h *harvestContext) theHarvestShouldFailWith(expected string) error {
	if h.err == nil {
		return fmt.Errorf("expected harvest to fail with %q but it succeeded", expected)
	}
	if !strings.Contains(h.err.Error(), expected) {
		return fmt.Errorf("expected error to contain %q but got: %v", expected, h.err)
	}
	return nil
}

func (h *harvestContext) theTranscriptAPIShouldHaveBeenAskedFor(ids string) error {
	want := splitIDs(ids)
	sort.Strings(want)
	got := h.api.requested()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected transcript requests for %v, got %v", want, got)
	}
	return nil
}

func (h *harvestContext) loadStatus() (*ledger.Status, error) {
	status, err := ledgerstore.ForDirectory(h.channelDir(), logger.NewNop()).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return status, nil
}

func (h *harvestContext) theLedgerShouldListAsCompleted(ids string) error {
	status, err := h.loadStatus()
	if err != nil {
		return err
	}
	if got, want := strings.Join(status.Completed.Sorted(), ","), strings.Join(sorted(splitIDs(ids)), ","); got != want {
		return fmt.Errorf("expected completed %q, got %q", want, got)
	}
	return nil
}

func (h *harvestContext) theLedgerShouldListAsFailed(ids string) error {
	status, err := h.loadStatus()
	if err != nil {
		return err
	}
	if got, want := strings.Join(status.Failed.Sorted(), ","), strings.Join(sorted(splitIDs(ids)), ","); got != want {
		return fmt.Errorf("expected failed %q, got %q", want, got)
	}
	return nil
}

func (h *harvestContext) theLedgerShouldListNoFailedItems() error {
	status, err := h.loadStatus()
	if err != nil {
		return err
	}
	if status.Failed.Len() != 0 {
		return fmt.Errorf("expected no failed items, got %v", status.Failed.Sorted())
	}
	return nil
}

func (h *harvestContext) theCorruptLedgerShouldBeLeftInPlace() error {
	data, err := os.ReadFile(h.store().Path())
	if err != nil {
		return err
	}
	if !bytes.Equal(data, h.corruptData) {
		return fmt.Errorf("corrupt ledger was modified")
	}
	return nil
}

func (h *harvestContext) theCorruptLedgerShouldBeMovedAside() error {
	matches, err := filepath.Glob(h.store().Path() + ".corrupt-*")
	if err != nil {
		return err
	}
	if len(matches) != 1 {
		return fmt.Errorf("expected one moved-aside ledger, found %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return err
	}
	if !bytes.Equal(data, h.corruptData) {
		return fmt.Errorf("moved-aside ledger does not hold the corrupt content")
	}
	return nil
}

func (h *harvestContext) theOutputDirectoryShouldContain(name string) error {
	path := filepath.Join(h.channelDir(), name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected %s to exist: %w", path, err)
	}
	if filepath.Ext(name) != ".json" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s is not valid JSON", name)
	}
	return nil
}

func (h *harvestContext) theTranscriptForShouldContain(id, expected string) error {
	for _, item := range h.lister.items {
		if item.ID != id {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.channelDir(), report.TranscriptsDir, item.TranscriptFilename()))
		if err != nil {
			return err
		}
		if !strings.Contains(string(data), expected) {
			return fmt.Errorf("expected transcript of %s to contain %q, got:\n%s", id, expected, data)
		}
		return nil
	}
	return fmt.Errorf("unknown video %q", id)
}

func (h *harvestContext) theHarvestOutputShouldContain(expected string) error {
	if !strings.Contains(h.output.String(), expected) {
		return fmt.Errorf("expected output to contain %q but got:\n%s", expected, h.output.String())
	}
	return nil
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
