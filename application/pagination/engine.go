package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-harvest/domain/content"
	"media-harvest/domain/feed"
	"media-harvest/infrastructure/logger"
)

const (
	DefaultMaxPages  = 50
	DefaultPageDelay = 2 * time.Second
	DefaultBackoff   = 5 * time.Second
)

// StopReason records why pagination ended
type StopReason string

const (
	StopNoCursor       StopReason = "no_cursor"
	StopMaxPages       StopReason = "max_pages"
	StopCursorStuck    StopReason = "cursor_unchanged"
	StopCursorNotFound StopReason = "cursor_not_found"
	StopNoNewItems     StopReason = "no_new_items"
	StopPageFailed     StopReason = "page_failed"
	StopCursorFailed   StopReason = "cursor_failed"
	StopEmptyFirstPage StopReason = "empty_first_page"
)

// Sleeper waits for d or until ctx is done
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on the wall clock
type TimerSleeper struct{}

// Sleep implements Sleeper
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result is the outcome of FetchAll. Partial means pages were lost to repeated
// failures but everything collected so far is returned.
type Result struct {
	Items      []content.Item
	Pages      int
	Partial    bool
	StopReason StopReason
}

// Engine walks a two-endpoint cursor feed
type Engine struct {
	sleeper  Sleeper
	log      logger.Logger
	maxPages int
	delay    time.Duration
	backoff  time.Duration
	filter   func(content.Item) bool
}

// Option is a functional option for configuring Engine
type Option func(*Engine)

// WithSleeper replaces the wall-clock sleeper (for testing)
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) {
		e.sleeper = s
	}
}

// WithMaxPages caps the number of pages fetched
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithDelays sets the inter-page delay and the retry backoff
func WithDelays(delay, backoff time.Duration) Option {
	return func(e *Engine) {
		e.delay = delay
		e.backoff = backoff
	}
}

// WithFilter keeps only items for which keep returns true. Filtered items still
// count as seen, so they do not end pagination early.
func WithFilter(keep func(content.Item) bool) Option {
	return func(e *Engine) {
		e.filter = keep
	}
}

// NewEngine creates a pagination engine
func NewEngine(log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		sleeper:  TimerSleeper{},
		log:      log,
		maxPages: DefaultMaxPages,
		delay:    DefaultPageDelay,
		backoff:  DefaultBackoff,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// FetchAll collects every reachable page from source. It only returns an error
// when the first page cannot be fetched or ctx is cancelled.
func (e *Engine) FetchAll(ctx context.Context, source feed.Source) (*Result, error) {
	state := feed.NewCursorState()
	result := &Result{}

	page, err := e.fetchWithRetry(ctx, source, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	result.Pages = 1
	first := state.Admit(page.Items)
	e.appendItems(result, first)
	e.log.Emit(logger.INFO, "page 1: %d items", len(first))

	if len(first) == 0 {
		result.StopReason = StopEmptyFirstPage
		return result, nil
	}

	state.Cursor, state.HasCursor, err = source.NextCursor(ctx, "")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, content.ErrCursorNotFound) {
			result.StopReason = StopCursorNotFound
			return result, nil
		}
		e.log.Emit(logger.WARNING, "failed to get pagination cursor: %v", err)
		result.StopReason = StopCursorFailed
		return result, nil
	}
	if !state.HasCursor {
		e.log.Emit(logger.INFO, "no pagination cursor, returning first page only")
		result.StopReason = StopNoCursor
		return result, nil
	}
	if state.Cursor == "" {
		// page 2 would repeat page 1
		e.log.Emit(logger.WARNING, "cursor did not change, stopping")
		result.StopReason = StopCursorStuck
		return result, nil
	}

	for pageNum := 2; ; pageNum++ {
		if pageNum > e.maxPages {
			result.StopReason = StopMaxPages
			break
		}

		if pageNum > 2 {
			if err := e.sleeper.Sleep(ctx, e.delay); err != nil {
				return nil, err
			}
		}

		page, err := e.fetchWithRetry(ctx, source, state.Cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.Emit(logger.WARNING, "page %d failed after retry, stopping: %v", pageNum, err)
			result.Partial = true
			result.StopReason = StopPageFailed
			break
		}
		result.Pages = pageNum

		fresh := state.Admit(page.Items)
		if dup := len(page.Items) - len(fresh); dup > 0 {
			e.log.Emit(logger.DEBUG, "page %d: skipped %d duplicates", pageNum, dup)
		}
		if len(fresh) == 0 {
			e.log.Emit(logger.INFO, "page %d has no new items, reached end of timeline", pageNum)
			result.StopReason = StopNoNewItems
			break
		}
		e.appendItems(result, fresh)
		e.log.Emit(logger.INFO, "page %d: %d new items (%d total)", pageNum, len(fresh), len(state.SeenIDs))

		next, ok, err := source.NextCursor(ctx, state.Cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, content.ErrCursorNotFound) {
				result.StopReason = StopCursorNotFound
			} else {
				e.log.Emit(logger.WARNING, "failed to get next cursor, stopping: %v", err)
				result.StopReason = StopCursorFailed
			}
			break
		}
		if !ok {
			result.StopReason = StopNoCursor
			break
		}
		if next == state.Cursor {
			e.log.Emit(logger.WARNING, "cursor did not change, stopping")
			result.StopReason = StopCursorStuck
			break
		}
		state.Cursor = next
	}

	return result, nil
}

func (e *Engine) appendItems(result *Result, items []content.Item) {
	for _, it := range items {
		if e.filter == nil || e.filter(it) {
			result.Items = append(result.Items, it)
		}
	}
}

// fetchWithRetry fetches one page, retrying a transient failure once after the backoff
func (e *Engine) fetchWithRetry(ctx context.Context, source feed.Source, cursor string) (*feed.Page, error) {
	page, err := source.FetchPage(ctx, cursor)
	if err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !content.IsTransient(err) {
		return nil, err
	}

	e.log.Emit(logger.WARNING, "page fetch failed, retrying in %s: %v", e.backoff, err)
	if err := e.sleeper.Sleep(ctx, e.backoff); err != nil {
		return nil, err
	}
	return source.FetchPage(ctx, cursor)
}
