package deck

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"flashdeck/internal/core"
)

// newTestService backs a Service with an in-memory SQLite store.
func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection, or each pooled connection sees its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)

	return NewService(store), store
}

func TestDeckCRUD(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Spanish", "common verbs")
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Spanish", d.Name)

	got, err := svc.GetDeck(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "common verbs", got.Description)

	updated, err := svc.UpdateDeck(ctx, d.ID, "Spanish A1", "beginner verbs")
	require.NoError(t, err)
	assert.Equal(t, "Spanish A1", updated.Name)

	decks, err := svc.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 1)
	assert.Equal(t, "Spanish A1", decks[0].Name)

	require.NoError(t, svc.DeleteDeck(ctx, d.ID))

	_, err = svc.GetDeck(ctx, d.ID)
	requireKind(t, err, core.ErrorKindNotFound)
}

func TestCreateDeckValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateDeck(context.Background(), "", "desc")
	requireKind(t, err, core.ErrorKindValidation)
}

func TestCardCRUD(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Spanish", "")
	require.NoError(t, err)

	card, err := svc.CreateCard(ctx, d.ID, "hablar", "to speak")
	require.NoError(t, err)
	assert.Equal(t, core.MinBox, card.Box)
	assert.False(t, card.DueAt.After(time.Now()), "new card should be due immediately")

	got, err := svc.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "hablar", got.Front)

	updated, err := svc.UpdateCard(ctx, card.ID, "comer", "to eat")
	require.NoError(t, err)
	assert.Equal(t, "comer", updated.Front)
	assert.Equal(t, card.Box, updated.Box, "content edit must not touch scheduling state")

	cards, err := svc.ListCards(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)

	require.NoError(t, svc.DeleteCard(ctx, card.ID))
	_, err = svc.GetCard(ctx, card.ID)
	requireKind(t, err, core.ErrorKindNotFound)
}

func TestCardValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Deck", "")
	require.NoError(t, err)

	_, err = svc.CreateCard(ctx, d.ID, "", "back")
	requireKind(t, err, core.ErrorKindValidation)

	_, err = svc.CreateCard(ctx, "no-such-deck", "front", "back")
	requireKind(t, err, core.ErrorKindNotFound)
}

func TestDeleteDeckCascades(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Deck", "")
	require.NoError(t, err)
	card, err := svc.CreateCard(ctx, d.ID, "f", "b")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDeck(ctx, d.ID))

	got, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "cards should be deleted with their deck")
}

func TestAddGeneratedCards(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Deck", "")
	require.NoError(t, err)

	generated := []core.GeneratedCard{
		{Front: "Q1", Back: "A1"},
		{Front: "", Back: "A2"}, // skipped: empty side
		{Front: "Q3", Back: "A3"},
	}
	cards, err := svc.AddGeneratedCards(ctx, d.ID, generated)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	stored, err := svc.ListCards(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestAddGeneratedCardsAllEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Deck", "")
	require.NoError(t, err)

	_, err = svc.AddGeneratedCards(ctx, d.ID, []core.GeneratedCard{{Front: "", Back: ""}})
	requireKind(t, err, core.ErrorKindValidation)
}

func TestListDueCards(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Deck", "")
	require.NoError(t, err)

	now := time.Now().UTC()

	due, err := svc.CreateCard(ctx, d.ID, "due", "now")
	require.NoError(t, err)

	future, err := svc.CreateCard(ctx, d.ID, "future", "later")
	require.NoError(t, err)
	future.DueAt = now.Add(48 * time.Hour)
	require.NoError(t, store.UpdateCard(ctx, future))

	cards, err := store.ListDueCards(ctx, d.ID, now.Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, due.ID, cards[0].ID)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDeck(ctx, "Deck", "desc")
	require.NoError(t, err)
	_, err = svc.CreateCard(ctx, d.ID, "f", "b")
	require.NoError(t, err)

	export, err := svc.Export(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, export.Deck.ID)
	require.Len(t, export.Cards, 1)
	assert.Equal(t, "f", export.Cards[0].Front)
}

func requireKind(t *testing.T, err error, kind core.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*core.Error)
	require.True(t, ok, "error %v is not a *core.Error", err)
	require.Equal(t, kind, appErr.Kind)
}
