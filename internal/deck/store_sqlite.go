package deck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flashdeck/internal/core"
)

// columnsPerCard matches the card INSERT below; batches are chunked to stay
// within SQLite's 999 bindable-parameter limit.
const (
	maxSQLiteParams   = 999
	columnsPerCard    = 10
	maxCardsPerInsert = maxSQLiteParams / columnsPerCard
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the deck and card tables if they do not exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			deck_id TEXT NOT NULL,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			box INTEGER NOT NULL DEFAULT 1,
			due_at TEXT NOT NULL,
			reviews INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_cards_deck_id ON cards(deck_id)",
		"CREATE INDEX IF NOT EXISTS idx_cards_due_at ON cards(deck_id, due_at)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateDeck(ctx context.Context, d *core.Deck) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO decks (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		d.ID, d.Name, d.Description, fmtTime(d.CreatedAt), fmtTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deck: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDecks(ctx context.Context) ([]core.Deck, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM decks ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []core.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, err
		}
		decks = append(decks, *d)
	}
	return decks, rows.Err()
}

func (s *SQLiteStore) GetDeck(ctx context.Context, id string) (*core.Deck, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM decks WHERE id = ?", id)
	d, err := scanDeck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStore) UpdateDeck(ctx context.Context, d *core.Deck) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE decks SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		d.Name, d.Description, fmtTime(d.UpdatedAt), d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteDeck(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cards WHERE deck_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete deck cards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM decks WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) CreateCards(ctx context.Context, cards []core.Card) error {
	if len(cards) == 0 {
		return nil
	}

	for i := 0; i < len(cards); i += maxCardsPerInsert {
		end := i + maxCardsPerInsert
		if end > len(cards) {
			end = len(cards)
		}
		chunk := cards[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]interface{}, 0, len(chunk)*columnsPerCard)
		for j, c := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
			values = append(values,
				c.ID, c.DeckID, c.Front, c.Back, c.Box,
				fmtTime(c.DueAt), c.Reviews, c.Lapses,
				fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt),
			)
		}

		query := `INSERT INTO cards (id, deck_id, front, back, box, due_at, reviews, lapses,
			created_at, updated_at) VALUES ` + strings.Join(placeholders, ",")

		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert card batch: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListCards(ctx context.Context, deckID string) ([]core.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCardColumns+" FROM cards WHERE deck_id = ? ORDER BY created_at", deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

func (s *SQLiteStore) GetCard(ctx context.Context, id string) (*core.Card, error) {
	row := s.db.QueryRowContext(ctx, selectCardColumns+" FROM cards WHERE id = ?", id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteStore) UpdateCard(ctx context.Context, card *core.Card) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cards SET front = ?, back = ?, box = ?, due_at = ?, reviews = ?, lapses = ?,
			updated_at = ? WHERE id = ?`,
		card.Front, card.Back, card.Box, fmtTime(card.DueAt),
		card.Reviews, card.Lapses, fmtTime(card.UpdatedAt), card.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCard(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]core.Card, error) {
	query := selectCardColumns + " FROM cards WHERE deck_id = ? AND due_at <= ? ORDER BY due_at"
	args := []interface{}{deckID, fmtTime(now)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

const selectCardColumns = "SELECT id, deck_id, front, back, box, due_at, reviews, lapses, created_at, updated_at"

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDeck(s scanner) (*core.Deck, error) {
	var d core.Deck
	var createdAt, updatedAt string
	if err := s.Scan(&d.ID, &d.Name, &d.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func scanCard(s scanner) (*core.Card, error) {
	var c core.Card
	var dueAt, createdAt, updatedAt string
	err := s.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.Box,
		&dueAt, &c.Reviews, &c.Lapses, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if c.DueAt, err = parseTime(dueAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCards(rows *sql.Rows) ([]core.Card, error) {
	var cards []core.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// Timestamps are stored as RFC3339Nano text so lexical and chronological
// order coincide for the due_at comparisons.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}
