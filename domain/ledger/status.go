package ledger

import (
	"sort"
	"time"
)

// IDSet is a set of item IDs
type IDSet map[string]struct{}

// NewIDSet builds a set from ids, dropping duplicates
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(id string) { s[id] = struct{}{} }

func (s IDSet) Remove(id string) { delete(s, id) }

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int { return len(s) }

// Sorted returns the IDs in a stable order for persistence
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s IDSet) clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Status is the resume state of one output directory. Completed and Failed
// never share an ID; completed wins when both claim one.
type Status struct {
	Completed  IDSet
	Failed     IDSet
	Skipped    IDSet
	LastUpdate time.Time
}

// NewStatus returns an empty status
func NewStatus() *Status {
	return &Status{
		Completed: IDSet{},
		Failed:    IDSet{},
		Skipped:   IDSet{},
	}
}

// Reconcile returns a copy of s with missing sets initialised and every
// completed ID removed from Failed. Reconcile(Reconcile(s)) equals Reconcile(s).
func Reconcile(s *Status) *Status {
	out := NewStatus()
	if s == nil {
		return out
	}
	if s.Completed != nil {
		out.Completed = s.Completed.clone()
	}
	if s.Skipped != nil {
		out.Skipped = s.Skipped.clone()
	}
	for id := range s.Failed {
		if !out.Completed.Has(id) {
			out.Failed.Add(id)
		}
	}
	out.LastUpdate = s.LastUpdate
	return out
}

// MarkCompleted records a successful item and clears any earlier failure
func (s *Status) MarkCompleted(id string) {
	s.Completed.Add(id)
	s.Failed.Remove(id)
}

// MarkFailed records a failed item unless it already completed
func (s *Status) MarkFailed(id string) {
	if s.Completed.Has(id) {
		return
	}
	s.Failed.Add(id)
}

// IsCompleted reports whether id finished in an earlier or the current run
func (s *Status) IsCompleted(id string) bool {
	return s.Completed.Has(id)
}

// ResetFailed clears the failed set so those items are retried on the next run.
// It returns how many IDs were cleared.
func (s *Status) ResetFailed() int {
	n := s.Failed.Len()
	s.Failed = IDSet{}
	return n
}
