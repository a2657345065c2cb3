package deck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashdeck/internal/core"
)

// PostgreSQLStore implements Store for PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the deck and card tables if they do not exist.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			deck_id TEXT NOT NULL REFERENCES decks(id) ON DELETE CASCADE,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			box INTEGER NOT NULL DEFAULT 1,
			due_at TIMESTAMPTZ NOT NULL,
			reviews INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_cards_deck_id ON cards(deck_id)",
		"CREATE INDEX IF NOT EXISTS idx_cards_due_at ON cards(deck_id, due_at)",
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

func (s *PostgreSQLStore) CreateDeck(ctx context.Context, d *core.Deck) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO decks (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		d.ID, d.Name, d.Description, d.CreatedAt.UTC(), d.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) ListDecks(ctx context.Context) ([]core.Deck, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, description, created_at, updated_at FROM decks ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []core.Deck
	for rows.Next() {
		var d core.Deck
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

func (s *PostgreSQLStore) GetDeck(ctx context.Context, id string) (*core.Deck, error) {
	var d core.Deck
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, description, created_at, updated_at FROM decks WHERE id = $1", id).
		Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return &d, nil
}

func (s *PostgreSQLStore) UpdateDeck(ctx context.Context, d *core.Deck) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE decks SET name = $1, description = $2, updated_at = $3 WHERE id = $4",
		d.Name, d.Description, d.UpdatedAt.UTC(), d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) DeleteDeck(ctx context.Context, id string) error {
	// cards go with the deck via ON DELETE CASCADE
	if _, err := s.pool.Exec(ctx, "DELETE FROM decks WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) CreateCards(ctx context.Context, cards []core.Card) error {
	if len(cards) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range cards {
		batch.Queue(
			`INSERT INTO cards (id, deck_id, front, back, box, due_at, reviews, lapses, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID, c.DeckID, c.Front, c.Back, c.Box,
			c.DueAt.UTC(), c.Reviews, c.Lapses, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range cards {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert card batch: %w", err)
		}
	}
	return nil
}

func (s *PostgreSQLStore) ListCards(ctx context.Context, deckID string) ([]core.Card, error) {
	rows, err := s.pool.Query(ctx,
		pgCardColumns+" FROM cards WHERE deck_id = $1 ORDER BY created_at", deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()
	return collectPgCards(rows)
}

func (s *PostgreSQLStore) GetCard(ctx context.Context, id string) (*core.Card, error) {
	var c core.Card
	err := s.pool.QueryRow(ctx, pgCardColumns+" FROM cards WHERE id = $1", id).
		Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Box,
			&c.DueAt, &c.Reviews, &c.Lapses, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &c, nil
}

func (s *PostgreSQLStore) UpdateCard(ctx context.Context, card *core.Card) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cards SET front = $1, back = $2, box = $3, due_at = $4, reviews = $5, lapses = $6,
			updated_at = $7 WHERE id = $8`,
		card.Front, card.Back, card.Box, card.DueAt.UTC(),
		card.Reviews, card.Lapses, card.UpdatedAt.UTC(), card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) DeleteCard(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM cards WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) ListDueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]core.Card, error) {
	query := pgCardColumns + " FROM cards WHERE deck_id = $1 AND due_at <= $2 ORDER BY due_at"
	args := []interface{}{deckID, now.UTC()}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards: %w", err)
	}
	defer rows.Close()
	return collectPgCards(rows)
}

const pgCardColumns = "SELECT id, deck_id, front, back, box, due_at, reviews, lapses, created_at, updated_at"

func collectPgCards(rows pgx.Rows) ([]core.Card, error) {
	var cards []core.Card
	for rows.Next() {
		var c core.Card
		err := rows.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Box,
			&c.DueAt, &c.Reviews, &c.Lapses, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
