package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"flashdeck/internal/core"
	"flashdeck/internal/deck"
	"flashdeck/internal/generate"
	"flashdeck/internal/review"
)

// stubCompleter answers every completion with a fixed reply.
type stubCompleter struct {
	content string
	err     error
}

func (s *stubCompleter) GetChatCompletion(_ context.Context, req *core.CompletionRequest) (*core.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &core.CompletionResponse{
		ID:    "r1",
		Model: req.Model,
		Choices: []core.Choice{
			{Message: core.ChatMessage{Role: core.RoleAssistant, Content: s.content}},
		},
	}, nil
}

func newTestServer(t *testing.T, completer generate.Completer, cfg *Config) *Server {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := deck.NewSQLiteStore(db)
	require.NoError(t, err)

	decks := deck.NewService(store)
	reviews := review.NewService(store)
	generator := generate.NewService(completer, nil, "test/model")

	return New(NewHandler(decks, reviews, generator), cfg)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func createDeck(t *testing.T, srv *Server, name string) core.Deck {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks", `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d core.Deck
	decodeJSON(t, rec, &d)
	return d
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDeckCRUD(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)

	d := createDeck(t, srv, "Go")
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Go", d.Name)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/decks", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Decks []core.Deck `json:"decks"`
	}
	decodeJSON(t, rec, &list)
	require.Len(t, list.Decks, 1)

	rec = doRequest(t, srv, http.MethodPut, "/api/v1/decks/"+d.ID, `{"name":"Golang","description":"d"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var updated core.Deck
	decodeJSON(t, rec, &updated)
	assert.Equal(t, "Golang", updated.Name)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/decks/"+d.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDeckValidation(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, "validation_error", body.Error.Type)
}

func TestCardCRUD(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)
	d := createDeck(t, srv, "Go")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/"+d.ID+"/cards", `{"front":"q","back":"a"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var card core.Card
	decodeJSON(t, rec, &card)
	assert.Equal(t, core.MinBox, card.Box)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/cards", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Cards []core.Card `json:"cards"`
	}
	decodeJSON(t, rec, &list)
	require.Len(t, list.Cards, 1)

	rec = doRequest(t, srv, http.MethodPut, "/api/v1/cards/"+card.ID, `{"front":"q2","back":"a2"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/cards/"+card.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/cards/"+card.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportDeck(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)
	d := createDeck(t, srv, "Go")
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/"+d.ID+"/cards", `{"front":"q","back":"a"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("json default", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/export", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var export core.DeckExport
		decodeJSON(t, rec, &export)
		assert.Equal(t, d.ID, export.Deck.ID)
		assert.Len(t, export.Cards, 1)
	})

	t.Run("yaml", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/export?format=yaml", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "yaml")
		var export core.DeckExport
		require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &export))
		assert.Equal(t, "Go", export.Deck.Name)
	})

	t.Run("unsupported format", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/export?format=xml", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGenerateCards(t *testing.T) {
	completer := &stubCompleter{content: `[{"front":"Q1","back":"A1"},{"front":"Q2","back":"A2"}]`}
	srv := newTestServer(t, completer, nil)
	d := createDeck(t, srv, "Go")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/"+d.ID+"/generate", `{"topic":"goroutines","count":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Cards     []core.Card `json:"cards"`
		Model     string      `json:"model"`
		FromCache bool        `json:"from_cache"`
	}
	decodeJSON(t, rec, &body)
	assert.Len(t, body.Cards, 2)
	assert.Equal(t, "test/model", body.Model)
	assert.False(t, body.FromCache)

	// Cards landed in the deck.
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/cards", "")
	var list struct {
		Cards []core.Card `json:"cards"`
	}
	decodeJSON(t, rec, &list)
	assert.Len(t, list.Cards, 2)
}

func TestGenerateCardsDeckMissing(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{content: `[{"front":"Q","back":"A"}]`}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/nope/generate", `{"topic":"t"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateCardsGatewayErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *core.Error
		wantStatus int
	}{
		{"rate limited", core.NewRateLimitError("slow down"), http.StatusTooManyRequests},
		{"credits exhausted", core.NewCreditExhaustedError("This request requires more credits.", 5000, 1200), http.StatusPaymentRequired},
		{"upstream down", core.NewServerError(503, "upstream"), http.StatusBadGateway},
		{"network failure", core.NewNetworkError("dial", nil), http.StatusServiceUnavailable},
		{"bad credentials", core.NewAuthenticationError("invalid key"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubCompleter{err: tt.err}, nil)
			d := createDeck(t, srv, "Go")

			rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/"+d.ID+"/generate", `{"topic":"t"}`)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestGenerateCardsHidesCredentialDetail(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{err: core.NewAuthenticationError("invalid key sk-or-abc123")}, nil)
	d := createDeck(t, srv, "Go")

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/"+d.ID+"/generate", `{"topic":"t"}`)
	assert.NotContains(t, rec.Body.String(), "sk-or-abc123")
}

func TestReviewFlow(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)
	d := createDeck(t, srv, "Go")
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/"+d.ID+"/cards", `{"front":"q","back":"a"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var card core.Card
	decodeJSON(t, rec, &card)

	// New card shows up as due.
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/review", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var due struct {
		Cards []core.Card `json:"cards"`
	}
	decodeJSON(t, rec, &due)
	require.Len(t, due.Cards, 1)

	// Grade it and it leaves the queue.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/cards/"+card.ID+"/review", `{"grade":"good"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var graded core.Card
	decodeJSON(t, rec, &graded)
	assert.Equal(t, 2, graded.Box)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/review", "")
	decodeJSON(t, rec, &due)
	assert.Empty(t, due.Cards)
}

func TestGradeValidation(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)
	d := createDeck(t, srv, "Go")
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/decks/"+d.ID+"/cards", `{"front":"q","back":"a"}`)
	var card core.Card
	decodeJSON(t, rec, &card)

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/cards/"+card.ID+"/review", `{"grade":"perfect"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDueCardsBadLimit(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)
	d := createDeck(t, srv, "Go")

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/decks/"+d.ID+"/review?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
