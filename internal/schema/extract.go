package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract pulls the JSON payload out of raw model text. The text may be the
// payload itself, a fenced code block around it, or prose with an embedded
// JSON value when format instructions lived in the prompt rather than the
// transport.
func Extract(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("empty model output")
	}

	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	if fenced := extractFenced(trimmed); fenced != "" && json.Valid([]byte(fenced)) {
		return fenced, nil
	}

	if embedded := extractBalanced(trimmed); embedded != "" && json.Valid([]byte(embedded)) {
		return embedded, nil
	}

	return "", fmt.Errorf("no parseable JSON found in model output")
}

// extractFenced returns the body of the first ``` fence, tolerating a
// language tag on the opening line.
func extractFenced(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return ""
	}
	rest := text[start+3:]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		// Skip the language tag line ("json", "yaml", or empty)
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// extractBalanced returns the first balanced top-level object or array,
// honoring string literals and escapes.
func extractBalanced(text string) string {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return ""
	}
	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
