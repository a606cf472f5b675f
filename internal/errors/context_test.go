package errors

import (
	"strings"
	"testing"
)

func TestErrorContextFormat(t *testing.T) {
	ec := &ErrorContext{
		Operation: "Provider resolution",
		Component: "router",
		Details: map[string]interface{}{
			"provider": "openai",
			"attempt":  2,
		},
		Suggestions: []string{
			"Set OPENAI_API_KEY",
			"Configure a gateway token",
		},
		Recoverable: true,
	}

	out := ec.Format()
	if !strings.Contains(out, "Provider resolution failed in router.") {
		t.Errorf("Operation/component line missing:\n%s", out)
	}
	if !strings.Contains(out, "1. Set OPENAI_API_KEY") || !strings.Contains(out, "2. Configure a gateway token") {
		t.Errorf("Suggestions not numbered:\n%s", out)
	}
	if !strings.Contains(out, "Recoverable: yes") {
		t.Errorf("Recoverable line missing:\n%s", out)
	}

	// Details print in sorted key order regardless of map iteration
	if strings.Index(out, "attempt: 2") > strings.Index(out, "provider: openai") {
		t.Errorf("Details not sorted by key:\n%s", out)
	}
}

func TestErrorContextFormatPartialFields(t *testing.T) {
	out := (&ErrorContext{Operation: "Schema Validation"}).Format()
	if !strings.Contains(out, "Schema Validation failed.") {
		t.Errorf("Operation-only line missing:\n%s", out)
	}
	if strings.Contains(out, "Recoverable") {
		t.Errorf("Recoverable line should be absent for non-recoverable errors:\n%s", out)
	}

	if got := (&ErrorContext{}).Format(); got != "" {
		t.Errorf("Empty context should format to nothing, got %q", got)
	}
}
