package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ToolCallAccumulator reconstructs complete tool invocations from partial,
// possibly id/index-sparse streamed fragments. It is pure state accumulation:
// no network, no retries, fully testable offline.
type ToolCallAccumulator struct {
	byIndex map[int]*pendingCall
	byID    map[string]*pendingCall
	seq     int
}

// pendingCall is one logical tool call being assembled
type pendingCall struct {
	id           string
	synthetic    bool // id was generated locally, may be re-keyed later
	index        int
	hasIndex     bool
	name         string
	args         string
	argsComplete bool // accumulated arguments already parse as full JSON
	seq          int  // first-seen order
}

// NewToolCallAccumulator creates an empty accumulator
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{
		byIndex: make(map[int]*pendingCall),
		byID:    make(map[string]*pendingCall),
	}
}

// Add folds one streamed fragment into the accumulator state.
// A fragment is matched to an existing entry by id first, then by index;
// otherwise a new entry is created with a synthesized id.
func (a *ToolCallAccumulator) Add(frag ToolCallFragment) {
	var call *pendingCall

	if frag.ID != "" {
		call = a.byID[frag.ID]
	}
	if call == nil && frag.Index != nil {
		call = a.byIndex[*frag.Index]
	}

	if call == nil {
		call = &pendingCall{seq: a.seq}
		a.seq++
		if frag.Index != nil {
			call.index = *frag.Index
			call.hasIndex = true
			a.byIndex[*frag.Index] = call
		}
		if frag.ID != "" {
			call.id = frag.ID
		} else {
			call.id = synthesizeCallID(call.index, call.seq)
			call.synthetic = true
		}
		a.byID[call.id] = call
	} else if frag.ID != "" && call.synthetic {
		// A stable id arrived for an entry keyed under a synthetic one:
		// re-key in the id map, index identity is preserved.
		delete(a.byID, call.id)
		call.id = frag.ID
		call.synthetic = false
		a.byID[call.id] = call
	}

	if frag.Index != nil && !call.hasIndex {
		call.index = *frag.Index
		call.hasIndex = true
		a.byIndex[*frag.Index] = call
	}

	// Name fragments replace, never append
	if frag.Name != "" {
		call.name = frag.Name
	}

	// Argument fragments append, unless the accumulated string is already
	// complete self-contained JSON. Some providers keep emitting trailing
	// noise after a full payload; those deltas are discarded.
	if frag.Arguments != "" && !call.argsComplete {
		call.args += frag.Arguments
		if json.Valid([]byte(call.args)) {
			call.argsComplete = true
		}
	}
}

// Finalize assembles the completed tool calls in their final order: by stream
// index when any fragment carried one, otherwise by first-seen order. Entries
// that were never named are dropped.
func (a *ToolCallAccumulator) Finalize() []ToolCallRequest {
	calls := make([]*pendingCall, 0, len(a.byID))
	anyIndexed := false
	for _, call := range a.byID {
		if call.name == "" {
			continue // Announced but never named
		}
		if call.hasIndex {
			anyIndexed = true
		}
		calls = append(calls, call)
	}

	sort.Slice(calls, func(i, j int) bool {
		if anyIndexed {
			if calls[i].hasIndex != calls[j].hasIndex {
				return calls[i].hasIndex
			}
			if calls[i].index != calls[j].index {
				return calls[i].index < calls[j].index
			}
		}
		return calls[i].seq < calls[j].seq
	})

	out := make([]ToolCallRequest, len(calls))
	for i, call := range calls {
		out[i] = ToolCallRequest{
			ID:        call.id,
			Name:      call.name,
			Arguments: call.args,
		}
	}
	return out
}

// Len returns the number of entries currently tracked, named or not
func (a *ToolCallAccumulator) Len() int {
	return len(a.byID)
}

// synthesizeCallID builds a process-unique id for fragments that never carry
// one. The seq component keeps ids distinct when two unnamed entries are
// created within the same clock tick.
func synthesizeCallID(index, seq int) string {
	return fmt.Sprintf("call_%d_%d_%d", time.Now().UnixNano(), index, seq)
}
