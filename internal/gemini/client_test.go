package gemini

import (
	"strings"
	"testing"

	"swampbot/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildJSONPrompt(t *testing.T) {
	prompt, err := BuildJSONPrompt(models.StructuredRequest{
		User:     "Text: is the build green?",
		Examples: []string{"Example: yes"},
		ToolName: "set_result",
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"is_question"},
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "Example: yes\n\nText: is the build green?"))
	assert.Contains(t, prompt, "for set_result")
	assert.Contains(t, prompt, `"required":["is_question"]`)
}

func TestResponseText(t *testing.T) {
	_, err := responseText(nil)
	assert.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	got, err := responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}
