package models

// Classification is the verdict on whether a text asks a question
type Classification struct {
	IsQuestion bool   `json:"is_question"`
	Reason     string `json:"reason"`
}

// Decision is the duplicate-question verdict for one incoming message.
// It is produced fresh per message and never persisted.
type Decision struct {
	Duplicate  bool    `json:"duplicate"`
	Confidence float64 `json:"confidence"`
	Reply      string  `json:"reply"`
}

// HistoryItem is a historical message excerpt handed to the recap drafter.
type HistoryItem struct {
	Author string `json:"author"`
	When   string `json:"when"`
	Text   string `json:"text"`
}

// StructuredRequest asks an LLM provider for a JSON object matching Schema.
type StructuredRequest struct {
	System          string
	User            string
	Examples        []string // extra user turns placed before User
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	MaxTokens       int
	Temperature     float64
}
