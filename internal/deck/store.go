// Package deck provides persistence and the CRUD service for decks and cards.
package deck

import (
	"context"
	"fmt"
	"time"

	"flashdeck/internal/core"
	"flashdeck/internal/storage"
)

// Store persists decks and cards. Lookups return nil, nil when the entity
// does not exist; the service layer maps that to a not-found error.
// Implementations must be safe for concurrent use.
type Store interface {
	CreateDeck(ctx context.Context, d *core.Deck) error
	ListDecks(ctx context.Context) ([]core.Deck, error)
	GetDeck(ctx context.Context, id string) (*core.Deck, error)
	UpdateDeck(ctx context.Context, d *core.Deck) error
	// DeleteDeck removes the deck and all of its cards.
	DeleteDeck(ctx context.Context, id string) error

	// CreateCards inserts cards in one batch (AI generation inserts many).
	CreateCards(ctx context.Context, cards []core.Card) error
	ListCards(ctx context.Context, deckID string) ([]core.Card, error)
	GetCard(ctx context.Context, id string) (*core.Card, error)
	UpdateCard(ctx context.Context, card *core.Card) error
	DeleteCard(ctx context.Context, id string) error

	// ListDueCards returns the deck's cards due at or before now, ordered by
	// due date. limit <= 0 means no limit.
	ListDueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]core.Card, error)
}

// NewStore builds the Store matching the configured storage backend.
func NewStore(st storage.Storage) (Store, error) {
	switch st.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(st.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(context.Background(), st.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBStore(st.MongoDatabase())
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", st.Type())
	}
}
