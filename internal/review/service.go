package review

import (
	"context"
	"time"

	"flashdeck/internal/core"
	"flashdeck/internal/deck"
)

// DefaultSessionLimit caps a study session so a long-neglected deck does not
// produce an unbounded queue.
const DefaultSessionLimit = 50

// Service implements the study workflow on top of the deck store.
type Service struct {
	store deck.Store

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewService creates a new review service.
func NewService(store deck.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// DueCards returns the deck's cards due for review, ordered by due date.
// limit <= 0 applies DefaultSessionLimit.
func (s *Service) DueCards(ctx context.Context, deckID string, limit int) ([]core.Card, error) {
	d, err := s.store.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, core.NewNotFoundError("deck not found: " + deckID)
	}

	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	return s.store.ListDueCards(ctx, deckID, s.now().UTC(), limit)
}

// GradeCard applies a review grade to a card and persists the new schedule.
func (s *Service) GradeCard(ctx context.Context, cardID string, grade Grade) (*core.Card, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, core.NewNotFoundError("card not found: " + cardID)
	}

	Apply(card, grade, s.now().UTC())

	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}
