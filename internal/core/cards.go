package core

import "time"

// Leitner box bounds. New cards start in box 1; each box doubles the review
// interval, capped at box 5.
const (
	MinBox = 1
	MaxBox = 5
)

// Deck groups flashcards under a name.
type Deck struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// Card is a single flashcard. Box, DueAt and the counters drive the review
// scheduler; they are never set directly by API clients.
type Card struct {
	ID        string    `json:"id" yaml:"id"`
	DeckID    string    `json:"deck_id" yaml:"deck_id"`
	Front     string    `json:"front" yaml:"front"`
	Back      string    `json:"back" yaml:"back"`
	Box       int       `json:"box" yaml:"box"`
	DueAt     time.Time `json:"due_at" yaml:"due_at"`
	Reviews   int       `json:"reviews" yaml:"reviews"`
	Lapses    int       `json:"lapses" yaml:"lapses"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// DeckExport is the serialized form of a deck with all its cards, used by the
// export endpoint for both JSON and YAML output.
type DeckExport struct {
	Deck  Deck   `json:"deck" yaml:"deck"`
	Cards []Card `json:"cards" yaml:"cards"`
}

// GeneratedCard is one front/back pair parsed out of a model reply.
type GeneratedCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}
