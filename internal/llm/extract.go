package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be recovered from model output.
var ErrNoJSON = errors.New("no JSON object in model output")

// ExtractJSON recovers a JSON object from model output. Strict parsing is
// tried first, then the text with markdown code fences removed, then the
// first balanced {...} block found anywhere in the text.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if isObject(trimmed) {
		return json.RawMessage(trimmed), nil
	}

	unfenced := stripFences(trimmed)
	if isObject(unfenced) {
		return json.RawMessage(unfenced), nil
	}

	for start := strings.IndexByte(unfenced, '{'); start >= 0; {
		if block, ok := balancedBlock(unfenced[start:]); ok && isObject(block) {
			return json.RawMessage(block), nil
		}
		next := strings.IndexByte(unfenced[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return nil, ErrNoJSON
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

func stripFences(s string) string {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// balancedBlock returns the prefix of s that closes the brace opened at s[0],
// honouring JSON string literals and escapes.
func balancedBlock(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
