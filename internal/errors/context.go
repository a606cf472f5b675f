package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorContext carries the user-facing framing of a failure: which operation
// broke, where, and what the caller can do about it.
type ErrorContext struct {
	Operation   string                 // Operation that failed, e.g. "Provider resolution"
	Component   string                 // Component it failed in, e.g. "router"
	Details     map[string]interface{} // Key/value facts about the failure
	Suggestions []string               // Concrete next steps for the user
	Recoverable bool                   // Whether retrying the call can succeed
}

// Format renders the context as the multi-line block appended to the
// user-facing error message. Details print in sorted key order.
func (ec *ErrorContext) Format() string {
	var sb strings.Builder

	switch {
	case ec.Operation != "" && ec.Component != "":
		fmt.Fprintf(&sb, "\nWhat happened:\n  %s failed in %s.\n", ec.Operation, ec.Component)
	case ec.Operation != "":
		fmt.Fprintf(&sb, "\nWhat happened:\n  %s failed.\n", ec.Operation)
	case ec.Component != "":
		fmt.Fprintf(&sb, "\nWhat happened:\n  Failure in %s.\n", ec.Component)
	}

	if len(ec.Details) > 0 {
		keys := make([]string, 0, len(ec.Details))
		for key := range ec.Details {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, key := range keys {
			fmt.Fprintf(&sb, "  - %s: %v\n", key, ec.Details[key])
		}
	}

	if len(ec.Suggestions) > 0 {
		sb.WriteString("\nWhat you can do:\n")
		for i, suggestion := range ec.Suggestions {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, suggestion)
		}
	}

	if ec.Recoverable {
		sb.WriteString("\nRecoverable: yes, the same call can be retried.\n")
	}

	return sb.String()
}
