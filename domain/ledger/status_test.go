package ledger

import (
	"reflect"
	"testing"
)

func TestReconcile_CompletedWins(t *testing.T) {
	s := &Status{
		Completed: NewIDSet("a", "b", "a"),
		Failed:    NewIDSet("b", "c"),
	}

	got := Reconcile(s)

	if !reflect.DeepEqual(got.Completed.Sorted(), []string{"a", "b"}) {
		t.Errorf("unexpected completed: %v", got.Completed.Sorted())
	}
	if !reflect.DeepEqual(got.Failed.Sorted(), []string{"c"}) {
		t.Errorf("unexpected failed: %v", got.Failed.Sorted())
	}
	if got.Skipped == nil {
		t.Error("skipped set should be initialised")
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	s := &Status{
		Completed: NewIDSet("1", "2"),
		Failed:    NewIDSet("2", "3", "4"),
		Skipped:   NewIDSet("9"),
	}

	once := Reconcile(s)
	twice := Reconcile(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("reconcile is not idempotent: %+v vs %+v", once, twice)
	}
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	s := &Status{Completed: NewIDSet("1"), Failed: NewIDSet("1")}
	Reconcile(s)
	if !s.Failed.Has("1") {
		t.Error("input status should be left untouched")
	}
}

func TestReconcile_Nil(t *testing.T) {
	got := Reconcile(nil)
	if got.Completed.Len() != 0 || got.Failed.Len() != 0 {
		t.Errorf("expected empty status, got %+v", got)
	}
}

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		name          string
		ops           func(s *Status)
		wantCompleted []string
		wantFailed    []string
	}{
		{
			name:          "complete clears failure",
			ops:           func(s *Status) { s.MarkFailed("x"); s.MarkCompleted("x") },
			wantCompleted: []string{"x"},
			wantFailed:    []string{},
		},
		{
			name:          "failure after completion is ignored",
			ops:           func(s *Status) { s.MarkCompleted("x"); s.MarkFailed("x") },
			wantCompleted: []string{"x"},
			wantFailed:    []string{},
		},
		{
			name:          "repeated failure kept once",
			ops:           func(s *Status) { s.MarkFailed("y"); s.MarkFailed("y") },
			wantCompleted: []string{},
			wantFailed:    []string{"y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStatus()
			tt.ops(s)
			if !reflect.DeepEqual(s.Completed.Sorted(), tt.wantCompleted) {
				t.Errorf("completed = %v, want %v", s.Completed.Sorted(), tt.wantCompleted)
			}
			if !reflect.DeepEqual(s.Failed.Sorted(), tt.wantFailed) {
				t.Errorf("failed = %v, want %v", s.Failed.Sorted(), tt.wantFailed)
			}
		})
	}
}

func TestStatus_ResetFailed(t *testing.T) {
	s := NewStatus()
	s.MarkCompleted("a")
	s.MarkFailed("b")
	s.MarkFailed("c")

	if n := s.ResetFailed(); n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	if s.Failed.Len() != 0 || !s.IsCompleted("a") {
		t.Errorf("unexpected status after reset: %+v", s)
	}
}
