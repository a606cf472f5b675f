package schema

import (
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain object",
			input:    `{"a":1}`,
			expected: `{"a":1}`,
		},
		{
			name:     "plain array",
			input:    `[1,2,3]`,
			expected: `[1,2,3]`,
		},
		{
			name:     "surrounding whitespace",
			input:    "\n  {\"a\":1}  \n",
			expected: `{"a":1}`,
		},
		{
			name:     "fenced with language tag",
			input:    "```json\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "fenced without language tag",
			input:    "```\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "prose around fence",
			input:    "Sure, here you go:\n```json\n{\"a\":1}\n```\nLet me know.",
			expected: `{"a":1}`,
		},
		{
			name:     "embedded in prose",
			input:    `The result is {"a":1} as computed.`,
			expected: `{"a":1}`,
		},
		{
			name:     "nested braces in strings",
			input:    `prefix {"text":"has } brace","n":1} suffix`,
			expected: `{"text":"has } brace","n":1}`,
		},
		{
			name:     "escaped quotes in strings",
			input:    `{"text":"she said \"hi\""}`,
			expected: `{"text":"she said \"hi\""}`,
		},
		{
			name:    "no json at all",
			input:   "just some prose",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "unbalanced braces",
			input:   `{"a":1`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Extract(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseOrderedPreservesKeyOrder(t *testing.T) {
	value, err := parseOrdered(`{"z":1,"a":{"y":2,"b":3},"m":[{"q":4,"c":5}]}`)
	if err != nil {
		t.Fatalf("parseOrdered failed: %v", err)
	}

	obj, ok := value.(*orderedObject)
	if !ok {
		t.Fatalf("Expected orderedObject, got %T", value)
	}
	if len(obj.keys) != 3 || obj.keys[0] != "z" || obj.keys[1] != "a" || obj.keys[2] != "m" {
		t.Errorf("Top-level key order lost: %v", obj.keys)
	}

	nested := obj.values["a"].(*orderedObject)
	if nested.keys[0] != "y" || nested.keys[1] != "b" {
		t.Errorf("Nested key order lost: %v", nested.keys)
	}

	arr := obj.values["m"].([]interface{})
	inArray := arr[0].(*orderedObject)
	if inArray.keys[0] != "q" || inArray.keys[1] != "c" {
		t.Errorf("In-array key order lost: %v", inArray.keys)
	}
}

func TestParseOrderedRejectsTrailingContent(t *testing.T) {
	if _, err := parseOrdered(`{"a":1} {"b":2}`); err == nil {
		t.Error("Expected error for trailing content")
	}
}

func TestToPlainRoundTrip(t *testing.T) {
	value, err := parseOrdered(`{"s":"x","n":1.5,"b":true,"z":null,"arr":[1,"two"],"obj":{"k":"v"}}`)
	if err != nil {
		t.Fatalf("parseOrdered failed: %v", err)
	}

	plain := toPlain(value).(map[string]interface{})
	if plain["s"] != "x" || plain["n"] != 1.5 || plain["b"] != true || plain["z"] != nil {
		t.Errorf("Scalars not converted: %#v", plain)
	}
	if _, ok := plain["obj"].(map[string]interface{}); !ok {
		t.Errorf("Nested object not converted to plain map: %#v", plain["obj"])
	}
}
