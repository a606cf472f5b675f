package llm

import (
	"strings"
	"testing"
)

func intPtr(i int) *int {
	return &i
}

func TestAccumulatorSingleCall(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: intPtr(0), ID: "call_1", Name: "search"})
	acc.Add(ToolCallFragment{Index: intPtr(0), Arguments: `{"q":`})
	acc.Add(ToolCallFragment{Index: intPtr(0), Arguments: `"golang"}`})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != "call_1" {
		t.Errorf("Expected id 'call_1', got '%s'", calls[0].ID)
	}
	if calls[0].Name != "search" {
		t.Errorf("Expected name 'search', got '%s'", calls[0].Name)
	}
	if calls[0].Arguments != `{"q":"golang"}` {
		t.Errorf("Unexpected arguments: %s", calls[0].Arguments)
	}
}

func TestAccumulatorLateIDRekeysSyntheticEntry(t *testing.T) {
	// First fragment has no id; the accumulator synthesizes one. When the
	// stable id arrives on a later fragment for the same index, the entry is
	// re-keyed and must still produce exactly one call.
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: intPtr(0), Name: "search"})
	acc.Add(ToolCallFragment{Index: intPtr(0), ID: "abc", Arguments: `{"q":`})
	acc.Add(ToolCallFragment{Index: intPtr(0), ID: "abc", Arguments: `"x"}`})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != "abc" {
		t.Errorf("Expected stable id 'abc', got '%s'", calls[0].ID)
	}
	if calls[0].Name != "search" {
		t.Errorf("Expected name 'search', got '%s'", calls[0].Name)
	}
	if calls[0].Arguments != `{"q":"x"}` {
		t.Errorf("Unexpected arguments: %s", calls[0].Arguments)
	}
}

func TestAccumulatorSharedIndexMergesIntoOneEntry(t *testing.T) {
	// No fragment carries an id; two fragments with the same index must
	// accumulate into a single entry.
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: intPtr(2), Name: "lookup"})
	acc.Add(ToolCallFragment{Index: intPtr(2), Arguments: `{"k":1}`})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "lookup" {
		t.Errorf("Expected name 'lookup', got '%s'", calls[0].Name)
	}
	if !strings.HasPrefix(calls[0].ID, "call_") {
		t.Errorf("Expected synthesized id, got '%s'", calls[0].ID)
	}
}

func TestAccumulatorMultipleCallsOrderedByIndex(t *testing.T) {
	acc := NewToolCallAccumulator()
	// Delivered out of index order
	acc.Add(ToolCallFragment{Index: intPtr(1), ID: "b", Name: "second", Arguments: `{}`})
	acc.Add(ToolCallFragment{Index: intPtr(0), ID: "a", Name: "first", Arguments: `{}`})

	calls := acc.Finalize()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "first" || calls[1].Name != "second" {
		t.Errorf("Expected index order [first second], got [%s %s]", calls[0].Name, calls[1].Name)
	}
}

func TestAccumulatorFirstSeenOrderWithoutIndexes(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{ID: "z", Name: "zeta", Arguments: `{}`})
	acc.Add(ToolCallFragment{ID: "a", Name: "alpha", Arguments: `{}`})

	calls := acc.Finalize()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "zeta" || calls[1].Name != "alpha" {
		t.Errorf("Expected first-seen order [zeta alpha], got [%s %s]", calls[0].Name, calls[1].Name)
	}
}

func TestAccumulatorDropsUnnamedEntries(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: intPtr(0), ID: "named", Name: "search", Arguments: `{}`})
	acc.Add(ToolCallFragment{Index: intPtr(1), ID: "anon", Arguments: `{"x":1}`})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].ID != "named" {
		t.Errorf("Expected only the named entry, got '%s'", calls[0].ID)
	}
}

func TestAccumulatorIgnoresTrailingNoiseAfterCompleteArguments(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: intPtr(0), ID: "c1", Name: "run"})
	acc.Add(ToolCallFragment{Index: intPtr(0), Arguments: `{"cmd":"ls"}`})
	// Provider keeps streaming after a complete payload
	acc.Add(ToolCallFragment{Index: intPtr(0), Arguments: `{"cmd":"rm"}`})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].Arguments != `{"cmd":"ls"}` {
		t.Errorf("Expected arguments cut at first complete JSON, got %s", calls[0].Arguments)
	}
}

func TestAccumulatorNameReplacesNotAppends(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: intPtr(0), ID: "c1", Name: "sea"})
	acc.Add(ToolCallFragment{Index: intPtr(0), Name: "search"})

	calls := acc.Finalize()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "search" {
		t.Errorf("Expected name 'search', got '%s'", calls[0].Name)
	}
}

func TestAccumulatorDistinctSyntheticIDs(t *testing.T) {
	acc := NewToolCallAccumulator()
	acc.Add(ToolCallFragment{Index: intPtr(0), Name: "a", Arguments: `{}`})
	acc.Add(ToolCallFragment{Index: intPtr(1), Name: "b", Arguments: `{}`})

	calls := acc.Finalize()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}
	if calls[0].ID == calls[1].ID {
		t.Errorf("Synthesized ids must be distinct, both were '%s'", calls[0].ID)
	}
}
