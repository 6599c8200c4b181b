package ledgerstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"media-harvest/domain/content"
	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/logger"
)

// FileName is the ledger file kept in every output directory
const FileName = "processing_status.json"

// layouts accepted for last_update; older ledgers were written without a zone
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

type record struct {
	Completed  []string `json:"completed"`
	Failed     []string `json:"failed"`
	Skipped    []string `json:"skipped"`
	LastUpdate string   `json:"last_update,omitempty"`
}

// JSONStore persists a ledger.Status as a JSON file, replacing it atomically on save
type JSONStore struct {
	path         string
	resetCorrupt bool
	log          logger.Logger
	now          func() time.Time
}

// Option is a functional option for configuring JSONStore
type Option func(*JSONStore)

// WithResetCorrupt makes Load move an unreadable ledger aside and start empty
// instead of failing
func WithResetCorrupt(reset bool) Option {
	return func(s *JSONStore) {
		s.resetCorrupt = reset
	}
}

// WithClock sets the time source (for testing)
func WithClock(now func() time.Time) Option {
	return func(s *JSONStore) {
		s.now = now
	}
}

// NewJSONStore creates a store for the ledger at path
func NewJSONStore(path string, log logger.Logger, opts ...Option) *JSONStore {
	s := &JSONStore{
		path: path,
		log:  log,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ForDirectory returns a store for the ledger file inside dir
func ForDirectory(dir string, log logger.Logger, opts ...Option) *JSONStore {
	return NewJSONStore(filepath.Join(dir, FileName), log, opts...)
}

// Path returns the ledger file location
func (s *JSONStore) Path() string {
	return s.path
}

// Load implements ledger.Store. A missing file is an empty ledger.
func (s *JSONStore) Load() (*ledger.Status, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ledger.NewStatus(), nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		s.log.Emit(logger.WARNING, "ledger %s is empty, starting fresh", s.path)
		return ledger.NewStatus(), nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		corrupt := &content.LedgerCorruptionError{Path: s.path, Err: err}
		if !s.resetCorrupt {
			return nil, corrupt
		}
		return s.reset(corrupt)
	}

	status := &ledger.Status{
		Completed:  ledger.NewIDSet(rec.Completed...),
		Failed:     ledger.NewIDSet(rec.Failed...),
		Skipped:    ledger.NewIDSet(rec.Skipped...),
		LastUpdate: parseTime(rec.LastUpdate),
	}
	return status, nil
}

func (s *JSONStore) reset(corrupt *content.LedgerCorruptionError) (*ledger.Status, error) {
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().Format("20060102-150405"))
	if err := os.Rename(s.path, backup); err != nil {
		return nil, fmt.Errorf("failed to move corrupt ledger aside: %w", err)
	}
	s.log.Emit(logger.WARNING, "%v; moved to %s and starting with an empty ledger", corrupt.Err, backup)
	return ledger.NewStatus(), nil
}

func parseTime(v string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Save implements ledger.Store. The file is written to a temporary sibling,
// synced, then renamed over the old ledger.
func (s *JSONStore) Save(status *ledger.Status) error {
	now := s.now()
	status.LastUpdate = now

	rec := record{
		Completed:  status.Completed.Sorted(),
		Failed:     status.Failed.Sorted(),
		Skipped:    status.Skipped.Sorted(),
		LastUpdate: now.Format(time.RFC3339Nano),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

// Ensure JSONStore implements ledger.Store
var _ ledger.Store = (*JSONStore)(nil)
