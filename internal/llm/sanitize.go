package llm

import (
	"regexp"
	"strings"
)

var blankRunRe = regexp.MustCompile(`\n{5,}`)

// NormalizeText strips trailing whitespace from every line and collapses runs
// of more than three consecutive blank lines down to two. Semantic content is
// untouched; this only tightens whitespace before transmission.
func NormalizeText(text string) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")

	// Four or more blank lines are five or more consecutive newlines once
	// trailing whitespace is gone; reduce them to two blank lines.
	return blankRunRe.ReplaceAllString(out, "\n\n\n")
}

// NormalizeMessage returns a copy of msg with its text content normalized.
// Image parts and tool metadata pass through unchanged.
func NormalizeMessage(msg Message) Message {
	out := copyMessage(msg)
	out.Content = NormalizeText(out.Content)
	for i := range out.Parts {
		if out.Parts[i].Type == "text" {
			out.Parts[i].Text = NormalizeText(out.Parts[i].Text)
		}
	}
	return out
}

// SanitizeMessages produces the exact message sequence to transmit upstream:
// the normalized base conversation followed by the normalized prior history,
// with orphaned tool fragments repaired. Input slices are never mutated.
func SanitizeMessages(base []Message, history []Message) []Message {
	out := make([]Message, 0, len(base)+len(history))
	for _, msg := range base {
		out = append(out, NormalizeMessage(msg))
	}
	if len(history) > 0 {
		for _, msg := range SanitizeHistory(history) {
			out = append(out, NormalizeMessage(msg))
		}
	}
	return out
}

// SanitizeHistory repairs a tool-calling history before transmission:
//   - tool messages whose tool_call_id matches no id in the most recent
//     preceding assistant tool_calls set are dropped (providers reject them)
//   - tool messages with an empty name are dropped
//   - assistant tool_calls entries left without any tool response are removed;
//     an assistant message whose every tool call was removed becomes a plain
//     text message
//
// The input slice and its messages are never mutated.
func SanitizeHistory(history []Message) []Message {
	// First pass: find, for every assistant tool_calls set, which ids are
	// actually answered by tool messages before the next assistant turn.
	answered := make([]map[string]bool, len(history))
	lastAssistant := -1
	for i, msg := range history {
		switch msg.Role {
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				lastAssistant = i
				answered[i] = make(map[string]bool)
			} else {
				lastAssistant = -1
			}
		case "tool":
			if lastAssistant >= 0 && msg.ToolCallID != "" {
				for _, tc := range history[lastAssistant].ToolCalls {
					if tc.ID == msg.ToolCallID {
						answered[lastAssistant][msg.ToolCallID] = true
					}
				}
			}
		}
	}

	// Second pass: rebuild the history with orphans removed.
	out := make([]Message, 0, len(history))
	lastAssistant = -1
	for i, msg := range history {
		switch msg.Role {
		case "assistant":
			clean := copyMessage(msg)
			if len(msg.ToolCalls) > 0 {
				kept := make([]ToolCallRequest, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					if answered[i][tc.ID] {
						kept = append(kept, tc)
					}
				}
				if len(kept) == 0 {
					kept = nil // Plain text message when every call was filtered
				}
				clean.ToolCalls = kept
			}
			if len(clean.ToolCalls) > 0 {
				lastAssistant = i
			} else {
				lastAssistant = -1
			}
			out = append(out, clean)
		case "tool":
			if msg.Name == "" {
				continue
			}
			if lastAssistant < 0 || !answered[lastAssistant][msg.ToolCallID] {
				continue // Orphaned fragment
			}
			out = append(out, copyMessage(msg))
		default:
			out = append(out, copyMessage(msg))
		}
	}

	return out
}

// copyMessage deep-copies a message so sanitization never aliases caller state
func copyMessage(msg Message) Message {
	out := msg
	if len(msg.Parts) > 0 {
		out.Parts = make([]ContentPart, len(msg.Parts))
		copy(out.Parts, msg.Parts)
	}
	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCallRequest, len(msg.ToolCalls))
		copy(out.ToolCalls, msg.ToolCalls)
	}
	return out
}
