package review

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"flashdeck/internal/core"
	"flashdeck/internal/deck"
)

func newTestSetup(t *testing.T) (*Service, *deck.Service) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := deck.NewSQLiteStore(db)
	require.NoError(t, err)

	return NewService(store), deck.NewService(store)
}

func TestDueCards(t *testing.T) {
	ctx := context.Background()
	svc, decks := newTestSetup(t)

	d, err := decks.CreateDeck(ctx, "Deck", "")
	require.NoError(t, err)

	_, err = decks.CreateCard(ctx, d.ID, "q1", "a1")
	require.NoError(t, err)
	_, err = decks.CreateCard(ctx, d.ID, "q2", "a2")
	require.NoError(t, err)

	// New cards are due immediately.
	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	cards, err := svc.DueCards(ctx, d.ID, 0)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	// Limit is honored.
	cards, err = svc.DueCards(ctx, d.ID, 1)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestDueCardsDeckMissing(t *testing.T) {
	svc, _ := newTestSetup(t)

	_, err := svc.DueCards(context.Background(), "nope", 0)
	require.Error(t, err)
	appErr, ok := err.(*core.Error)
	require.True(t, ok)
	assert.Equal(t, core.ErrorKindNotFound, appErr.Kind)
}

func TestGradeCard(t *testing.T) {
	ctx := context.Background()
	svc, decks := newTestSetup(t)

	d, err := decks.CreateDeck(ctx, "Deck", "")
	require.NoError(t, err)
	card, err := decks.CreateCard(ctx, d.ID, "q", "a")
	require.NoError(t, err)

	graded, err := svc.GradeCard(ctx, card.ID, GradeGood)
	require.NoError(t, err)
	assert.Equal(t, 2, graded.Box)
	assert.Equal(t, 1, graded.Reviews)
	assert.True(t, graded.DueAt.After(time.Now()), "graded card should not be due yet")

	// A graded card leaves the due queue.
	cards, err := svc.DueCards(ctx, d.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, cards)

	// And the schedule survives a reload.
	reloaded, err := decks.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Box)
}

func TestGradeCardMissing(t *testing.T) {
	svc, _ := newTestSetup(t)

	_, err := svc.GradeCard(context.Background(), "nope", GradeGood)
	require.Error(t, err)
	appErr, ok := err.(*core.Error)
	require.True(t, ok)
	assert.Equal(t, core.ErrorKindNotFound, appErr.Kind)
}
