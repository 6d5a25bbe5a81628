package models

const (
	// EmbeddingDimension is the vector length produced by text-embedding-3-small
	EmbeddingDimension = 1536

	// MinEmbedChars is the shortest text worth sending to the embedding API.
	// Anything shorter is stored with a zero vector.
	MinEmbedChars = 8
)

// Message represents a chat post stored in the 'messages' table.
type Message struct {
	ID         string `db:"id" json:"id"`
	ChatID     string `db:"chat_id" json:"chat_id"`
	AuthorID   string `db:"author_id" json:"author_id,omitempty"`
	AuthorName string `db:"author_name" json:"author_name,omitempty"`
	CreatedAt  int64  `db:"created_at" json:"created_at"` // epoch milliseconds
	Text       string `db:"text" json:"text"`
	ParentID   string `db:"parent_id" json:"parent_id,omitempty"`
}

// ZeroVector returns the placeholder embedding stored for short messages.
func ZeroVector() []float32 {
	return make([]float32, EmbeddingDimension)
}

// Mention is a person or team referenced inside a post.
type Mention struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// Post is the canonical form of an inbound team-messaging post event.
type Post struct {
	ID          string
	ChatID      string
	ChatType    string
	CreatorID   string
	CreatorName string
	CreatedAt   int64
	ParentID    string
	Mentions    []Mention
	RawText     string
	CleanText   string
}

// Message converts the post into the record persisted in history.
func (p Post) Message() Message {
	return Message{
		ID:         p.ID,
		ChatID:     p.ChatID,
		AuthorID:   p.CreatorID,
		AuthorName: p.CreatorName,
		CreatedAt:  p.CreatedAt,
		Text:       p.CleanText,
		ParentID:   p.ParentID,
	}
}
