package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strict", `{"is_question":true,"reason":"asks"}`, `{"is_question":true,"reason":"asks"}`},
		{"padded", "  \n{\"a\":1}\n", `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure! Here you go: {"duplicate":false,"confidence":0,"reply":""} hope it helps`, `{"duplicate":false,"confidence":0,"reply":""}`},
		{"nested", `result => {"a":{"b":[1,2]},"c":"x"} trailing }`, `{"a":{"b":[1,2]},"c":"x"}`},
		{"braces in strings", `note {"reply":"use {curly} braces \" ok"} end`, `{"reply":"use {curly} braces \" ok"}`},
		{"skips broken first block", `{oops} then {"a":2}`, `{"a":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	for _, in := range []string{"", "no json here", "[1,2,3]", "{unterminated", `"just a string"`} {
		_, err := ExtractJSON(in)
		assert.ErrorIs(t, err, ErrNoJSON, in)
	}
}
