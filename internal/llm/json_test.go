package llm

import (
	"encoding/json"
	"testing"
)

func TestCoerceJSON_Strict(t *testing.T) {
	got := CoerceJSON(`{"keypoints":["a","b"]}`)
	if string(got) != `{"keypoints":["a","b"]}` {
		t.Fatalf("expected passthrough, got %s", got)
	}
}

func TestCoerceJSON_EmbeddedObject(t *testing.T) {
	input := `Here is the summary you asked for:
{"keypoints":["a"],"decisions":[]}
Let me know if you need anything else.`

	got := CoerceJSON(input)
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(got, &parsed); err != nil {
		t.Fatalf("expected valid JSON, got %s: %v", got, err)
	}
	if _, ok := parsed["keypoints"]; !ok {
		t.Fatalf("expected extracted object, got %s", got)
	}
	if _, ok := parsed["raw"]; ok {
		t.Fatalf("expected extraction, not raw wrap: %s", got)
	}
}

func TestCoerceJSON_RawFallback(t *testing.T) {
	got := CoerceJSON("I could not produce a summary.")

	var parsed map[string]string
	if err := json.Unmarshal(got, &parsed); err != nil {
		t.Fatalf("expected valid JSON wrapper, got %s: %v", got, err)
	}
	if parsed["raw"] != "I could not produce a summary." {
		t.Fatalf("expected original text under raw, got %q", parsed["raw"])
	}
}

func TestCoerceJSON_MalformedBraces(t *testing.T) {
	got := CoerceJSON(`{"broken": [1,2`)

	var parsed map[string]string
	if err := json.Unmarshal(got, &parsed); err != nil {
		t.Fatalf("expected raw wrapper, got %s: %v", got, err)
	}
	if parsed["raw"] == "" {
		t.Fatal("expected raw field to carry the original text")
	}
}

func TestCoerceJSON_MarkdownFence(t *testing.T) {
	input := "```json\n{\"decisions\":[\"ship it\"]}\n```"
	got := CoerceJSON(input)
	if string(got) != `{"decisions":["ship it"]}` {
		t.Fatalf("expected fenced JSON extracted, got %s", got)
	}
}

func TestCoerceJSON_NeverInvalid(t *testing.T) {
	inputs := []string{"", "   ", "}{", "```\n```", "{", "null"}
	for _, in := range inputs {
		got := CoerceJSON(in)
		if !json.Valid(got) {
			t.Errorf("CoerceJSON(%q) produced invalid JSON: %s", in, got)
		}
	}
}
