package deck

import (
	"context"
	"time"

	"github.com/google/uuid"

	"flashdeck/internal/core"
)

// Service implements deck and card operations on top of a Store.
type Service struct {
	store Store

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewService creates a new deck service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// CreateDeck creates a deck with a fresh ID.
func (s *Service) CreateDeck(ctx context.Context, name, description string) (*core.Deck, error) {
	if name == "" {
		return nil, core.NewValidationError("deck name is required")
	}

	now := s.now().UTC()
	d := &core.Deck{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateDeck(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListDecks returns all decks in creation order.
func (s *Service) ListDecks(ctx context.Context) ([]core.Deck, error) {
	return s.store.ListDecks(ctx)
}

// GetDeck returns a deck or a not-found error.
func (s *Service) GetDeck(ctx context.Context, id string) (*core.Deck, error) {
	d, err := s.store.GetDeck(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, core.NewNotFoundError("deck not found: " + id)
	}
	return d, nil
}

// UpdateDeck renames a deck and/or replaces its description.
func (s *Service) UpdateDeck(ctx context.Context, id, name, description string) (*core.Deck, error) {
	if name == "" {
		return nil, core.NewValidationError("deck name is required")
	}

	d, err := s.GetDeck(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Name = name
	d.Description = description
	d.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateDeck(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDeck removes a deck and all of its cards.
func (s *Service) DeleteDeck(ctx context.Context, id string) error {
	if _, err := s.GetDeck(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteDeck(ctx, id)
}

// CreateCard adds a single card to a deck. New cards start in box 1 and are
// due immediately.
func (s *Service) CreateCard(ctx context.Context, deckID, front, back string) (*core.Card, error) {
	if front == "" || back == "" {
		return nil, core.NewValidationError("card front and back are required")
	}
	if _, err := s.GetDeck(ctx, deckID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	card := newCard(deckID, front, back, now)
	if err := s.store.CreateCards(ctx, []core.Card{*card}); err != nil {
		return nil, err
	}
	return card, nil
}

// AddGeneratedCards inserts AI-generated front/back pairs into a deck in one
// batch, skipping pairs with an empty side.
func (s *Service) AddGeneratedCards(ctx context.Context, deckID string, generated []core.GeneratedCard) ([]core.Card, error) {
	if _, err := s.GetDeck(ctx, deckID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cards := make([]core.Card, 0, len(generated))
	for _, g := range generated {
		if g.Front == "" || g.Back == "" {
			continue
		}
		cards = append(cards, *newCard(deckID, g.Front, g.Back, now))
	}
	if len(cards) == 0 {
		return nil, core.NewValidationError("no usable cards in generated content")
	}

	if err := s.store.CreateCards(ctx, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// ListCards returns a deck's cards in creation order.
func (s *Service) ListCards(ctx context.Context, deckID string) ([]core.Card, error) {
	if _, err := s.GetDeck(ctx, deckID); err != nil {
		return nil, err
	}
	return s.store.ListCards(ctx, deckID)
}

// GetCard returns a card or a not-found error.
func (s *Service) GetCard(ctx context.Context, id string) (*core.Card, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, core.NewNotFoundError("card not found: " + id)
	}
	return card, nil
}

// UpdateCard replaces a card's front and back text. Scheduling state is
// owned by the review workflow and left untouched.
func (s *Service) UpdateCard(ctx context.Context, id, front, back string) (*core.Card, error) {
	if front == "" || back == "" {
		return nil, core.NewValidationError("card front and back are required")
	}

	card, err := s.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	card.Front = front
	card.Back = back
	card.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// DeleteCard removes a single card.
func (s *Service) DeleteCard(ctx context.Context, id string) error {
	if _, err := s.GetCard(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteCard(ctx, id)
}

// Export bundles a deck with all of its cards for download.
func (s *Service) Export(ctx context.Context, deckID string) (*core.DeckExport, error) {
	d, err := s.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	cards, err := s.store.ListCards(ctx, deckID)
	if err != nil {
		return nil, err
	}
	return &core.DeckExport{Deck: *d, Cards: cards}, nil
}

func newCard(deckID, front, back string, now time.Time) *core.Card {
	return &core.Card{
		ID:        uuid.NewString(),
		DeckID:    deckID,
		Front:     front,
		Back:      back,
		Box:       core.MinBox,
		DueAt:     now,
		Reviews:   0,
		Lapses:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
