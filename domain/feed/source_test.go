package feed

import (
	"testing"

	"media-harvest/domain/content"
)

func ids(items []content.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestCursorState_Admit(t *testing.T) {
	state := NewCursorState()

	first := state.Admit([]content.Item{{ID: "1"}, {ID: "2"}, {ID: "2"}, {ID: ""}})
	if got := ids(first); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("expected [1 2], got %v", got)
	}

	second := state.Admit([]content.Item{{ID: "2"}, {ID: "3"}, {ID: "1"}})
	if got := ids(second); len(got) != 1 || got[0] != "3" {
		t.Errorf("expected [3], got %v", got)
	}

	if len(state.SeenIDs) != 3 {
		t.Errorf("expected 3 seen IDs, got %d", len(state.SeenIDs))
	}
}

func TestCursorState_AdmitNothingNew(t *testing.T) {
	state := NewCursorState()
	state.Admit([]content.Item{{ID: "a"}})

	if fresh := state.Admit([]content.Item{{ID: "a"}}); len(fresh) != 0 {
		t.Errorf("expected no fresh items, got %v", ids(fresh))
	}
}
