package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"media-harvest/domain/content"
	"media-harvest/domain/ledger"
	"media-harvest/infrastructure/logger"
)

// ProcessFunc acquires one item. Any returned error fails only that item.
type ProcessFunc func(ctx context.Context, item content.Item) (content.FetchResult, error)

// RunStats counts what happened in one run plus cumulative ledger totals
type RunStats struct {
	Attempted      int `json:"attempted"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	TotalCompleted int `json:"total_completed"`
	TotalFailed    int `json:"total_failed"`
}

// Summary is returned by Run
type Summary struct {
	Stats   RunStats
	Results []content.FetchResult
	// Interrupted is set when the context was cancelled before the list was exhausted
	Interrupted bool
	// Aborted is set when the ledger could not be saved and the run stopped early
	Aborted bool
	// Status is the reconciled ledger state after the run
	Status *ledger.Status
}

// Service walks an item list, skipping completed items and recording every
// attempt in the ledger before moving on.
type Service struct {
	store  ledger.Store
	log    logger.Logger
	output io.Writer
}

// NewService creates a new pipeline service
func NewService(store ledger.Store, log logger.Logger, output io.Writer) *Service {
	return &Service{
		store:  store,
		log:    log,
		output: output,
	}
}

// Run processes items in order. It only returns an error for setup failures
// (unreadable ledger) or when the ledger can no longer be saved.
func (s *Service) Run(ctx context.Context, items []content.Item, process ProcessFunc) (*Summary, error) {
	loaded, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	status := ledger.Reconcile(loaded)

	summary := &Summary{Status: status}
	total := len(items)

	for i, item := range items {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		if status.IsCompleted(item.ID) {
			summary.Stats.Skipped++
			s.log.Emit(logger.DEBUG, "skipping already completed %s", item.ID)
			continue
		}

		summary.Stats.Attempted++
		fmt.Fprintf(s.output, "[%d/%d] %s\n", i+1, total, item.DisplayTitle())

		result, err := s.invoke(ctx, item, process)
		if err != nil && ctx.Err() != nil {
			// Interrupted mid-item: leave it unrecorded so the next run retries it
			summary.Stats.Attempted--
			summary.Interrupted = true
			s.log.Emit(logger.WARNING, "interrupted while processing %s", item.ID)
			break
		}

		if err != nil {
			status.MarkFailed(item.ID)
			summary.Stats.Failed++
			summary.Results = append(summary.Results, content.Failure{Item: item, Err: err})
			fmt.Fprintf(s.output, "      Failed: %v\n", err)
			s.log.Emit(logger.ERROR, "item %s failed: %v", item.ID, err)
		} else {
			status.MarkCompleted(item.ID)
			summary.Stats.Successful++
			summary.Results = append(summary.Results, result)
			fmt.Fprintf(s.output, "      Done\n")
		}

		if err := s.store.Save(status); err != nil {
			summary.Aborted = true
			summary.Stats.TotalCompleted = status.Completed.Len()
			summary.Stats.TotalFailed = status.Failed.Len()
			return summary, fmt.Errorf("failed to save ledger after %s: %w", item.ID, err)
		}
	}

	summary.Status = ledger.Reconcile(status)
	summary.Stats.TotalCompleted = summary.Status.Completed.Len()
	summary.Stats.TotalFailed = summary.Status.Failed.Len()

	return summary, nil
}

// invoke calls process, turning a panic or a Failure result into an error
func (s *Service) invoke(ctx context.Context, item content.Item, process ProcessFunc) (result content.FetchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &content.ProcessingError{Stage: "process", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err = process(ctx, item)
	if err != nil {
		return nil, err
	}
	if f, ok := result.(content.Failure); ok {
		if f.Err == nil {
			return nil, errors.New("processor reported failure")
		}
		return nil, f.Err
	}
	if result == nil {
		return nil, errors.New("processor returned no result")
	}
	return result, nil
}
