package deck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"flashdeck/internal/core"
)

// MongoDBStore implements Store for MongoDB.
type MongoDBStore struct {
	decks *mongo.Collection
	cards *mongo.Collection
}

// mongoDeck and mongoCard keep the BSON field layout independent of the JSON
// API shapes.
type mongoDeck struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type mongoCard struct {
	ID        string    `bson:"_id"`
	DeckID    string    `bson:"deck_id"`
	Front     string    `bson:"front"`
	Back      string    `bson:"back"`
	Box       int       `bson:"box"`
	DueAt     time.Time `bson:"due_at"`
	Reviews   int       `bson:"reviews"`
	Lapses    int       `bson:"lapses"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoDBStore creates a new MongoDB-backed store.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &MongoDBStore{
		decks: database.Collection("decks"),
		cards: database.Collection("cards"),
	}, nil
}

func (s *MongoDBStore) CreateDeck(ctx context.Context, d *core.Deck) error {
	if _, err := s.decks.InsertOne(ctx, toMongoDeck(d)); err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}
	return nil
}

func (s *MongoDBStore) ListDecks(ctx context.Context) ([]core.Deck, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.decks.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoDeck
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode decks: %w", err)
	}

	decks := make([]core.Deck, 0, len(docs))
	for _, doc := range docs {
		decks = append(decks, *fromMongoDeck(&doc))
	}
	return decks, nil
}

func (s *MongoDBStore) GetDeck(ctx context.Context, id string) (*core.Deck, error) {
	var doc mongoDeck
	err := s.decks.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return fromMongoDeck(&doc), nil
}

func (s *MongoDBStore) UpdateDeck(ctx context.Context, d *core.Deck) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: d.Name},
		{Key: "description", Value: d.Description},
		{Key: "updated_at", Value: d.UpdatedAt.UTC()},
	}}}
	if _, err := s.decks.UpdateOne(ctx, bson.D{{Key: "_id", Value: d.ID}}, update); err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}
	return nil
}

func (s *MongoDBStore) DeleteDeck(ctx context.Context, id string) error {
	if _, err := s.cards.DeleteMany(ctx, bson.D{{Key: "deck_id", Value: id}}); err != nil {
		return fmt.Errorf("failed to delete deck cards: %w", err)
	}
	if _, err := s.decks.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	return nil
}

func (s *MongoDBStore) CreateCards(ctx context.Context, cards []core.Card) error {
	if len(cards) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(cards))
	for i := range cards {
		docs = append(docs, toMongoCard(&cards[i]))
	}
	if _, err := s.cards.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert cards: %w", err)
	}
	return nil
}

func (s *MongoDBStore) ListCards(ctx context.Context, deckID string) ([]core.Card, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return s.findCards(ctx, bson.D{{Key: "deck_id", Value: deckID}}, opts)
}

func (s *MongoDBStore) GetCard(ctx context.Context, id string) (*core.Card, error) {
	var doc mongoCard
	err := s.cards.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return fromMongoCard(&doc), nil
}

func (s *MongoDBStore) UpdateCard(ctx context.Context, card *core.Card) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "front", Value: card.Front},
		{Key: "back", Value: card.Back},
		{Key: "box", Value: card.Box},
		{Key: "due_at", Value: card.DueAt.UTC()},
		{Key: "reviews", Value: card.Reviews},
		{Key: "lapses", Value: card.Lapses},
		{Key: "updated_at", Value: card.UpdatedAt.UTC()},
	}}}
	if _, err := s.cards.UpdateOne(ctx, bson.D{{Key: "_id", Value: card.ID}}, update); err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return nil
}

func (s *MongoDBStore) DeleteCard(ctx context.Context, id string) error {
	if _, err := s.cards.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

func (s *MongoDBStore) ListDueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]core.Card, error) {
	filter := bson.D{
		{Key: "deck_id", Value: deckID},
		{Key: "due_at", Value: bson.D{{Key: "$lte", Value: now.UTC()}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "due_at", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	return s.findCards(ctx, filter, opts)
}

func (s *MongoDBStore) findCards(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]core.Card, error) {
	cursor, err := s.cards.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoCard
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode cards: %w", err)
	}

	cards := make([]core.Card, 0, len(docs))
	for i := range docs {
		cards = append(cards, *fromMongoCard(&docs[i]))
	}
	return cards, nil
}

func toMongoDeck(d *core.Deck) *mongoDeck {
	return &mongoDeck{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func fromMongoDeck(doc *mongoDeck) *core.Deck {
	return &core.Deck{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func toMongoCard(c *core.Card) *mongoCard {
	return &mongoCard{
		ID:        c.ID,
		DeckID:    c.DeckID,
		Front:     c.Front,
		Back:      c.Back,
		Box:       c.Box,
		DueAt:     c.DueAt.UTC(),
		Reviews:   c.Reviews,
		Lapses:    c.Lapses,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func fromMongoCard(doc *mongoCard) *core.Card {
	return &core.Card{
		ID:        doc.ID,
		DeckID:    doc.DeckID,
		Front:     doc.Front,
		Back:      doc.Back,
		Box:       doc.Box,
		DueAt:     doc.DueAt,
		Reviews:   doc.Reviews,
		Lapses:    doc.Lapses,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
