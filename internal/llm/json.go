package llm

import (
	"encoding/json"
	"strings"
)

// CoerceJSON recovers a JSON object from model output with a three-step
// contract: strict decode; then decode of the substring from the first
// opening brace to the last closing brace; then a {"raw": <text>} wrap.
// It never fails: malformed model output degrades to the raw wrapper.
func CoerceJSON(text string) json.RawMessage {
	trimmed := strings.TrimSpace(stripFences(text))

	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return json.RawMessage(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		inner := trimmed[start : end+1]
		if json.Valid([]byte(inner)) {
			return json.RawMessage(inner)
		}
	}

	wrapped, _ := json.Marshal(map[string]string{"raw": text})
	return wrapped
}

// stripFences removes a surrounding markdown code fence, which several
// models emit around JSON despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s[3:], "\n"); idx >= 0 {
		s = s[3+idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
