package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"

	"flashdeck/internal/core"
	"flashdeck/internal/deck"
	"flashdeck/internal/generate"
	"flashdeck/internal/review"
)

// Handler holds the HTTP handlers and the services they delegate to.
type Handler struct {
	decks     *deck.Service
	reviews   *review.Service
	generator *generate.Service
}

// NewHandler creates a new handler over the application services.
func NewHandler(decks *deck.Service, reviews *review.Service, generator *generate.Service) *Handler {
	return &Handler{
		decks:     decks,
		reviews:   reviews,
		generator: generator,
	}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type deckRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateDeck handles POST /api/v1/decks
func (h *Handler) CreateDeck(c echo.Context) error {
	var req deckRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	d, err := h.decks.CreateDeck(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// ListDecks handles GET /api/v1/decks
func (h *Handler) ListDecks(c echo.Context) error {
	decks, err := h.decks.ListDecks(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"decks": decks})
}

// GetDeck handles GET /api/v1/decks/:id
func (h *Handler) GetDeck(c echo.Context) error {
	d, err := h.decks.GetDeck(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// UpdateDeck handles PUT /api/v1/decks/:id
func (h *Handler) UpdateDeck(c echo.Context) error {
	var req deckRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	d, err := h.decks.UpdateDeck(c.Request().Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// DeleteDeck handles DELETE /api/v1/decks/:id
func (h *Handler) DeleteDeck(c echo.Context) error {
	if err := h.decks.DeleteDeck(c.Request().Context(), c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportDeck handles GET /api/v1/decks/:id/export?format=json|yaml
func (h *Handler) ExportDeck(c echo.Context) error {
	export, err := h.decks.Export(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}

	switch format := c.QueryParam("format"); format {
	case "", "json":
		return c.JSON(http.StatusOK, export)
	case "yaml":
		out, err := yaml.Marshal(export)
		if err != nil {
			return handleError(c, err)
		}
		return c.Blob(http.StatusOK, "application/x-yaml", out)
	default:
		return handleError(c, core.NewValidationError("unsupported export format: "+format+" (valid: json, yaml)"))
	}
}

type cardRequest struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// CreateCard handles POST /api/v1/decks/:id/cards
func (h *Handler) CreateCard(c echo.Context) error {
	var req cardRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	card, err := h.decks.CreateCard(c.Request().Context(), c.Param("id"), req.Front, req.Back)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, card)
}

// ListCards handles GET /api/v1/decks/:id/cards
func (h *Handler) ListCards(c echo.Context) error {
	cards, err := h.decks.ListCards(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"cards": cards})
}

// GetCard handles GET /api/v1/cards/:id
func (h *Handler) GetCard(c echo.Context) error {
	card, err := h.decks.GetCard(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

// UpdateCard handles PUT /api/v1/cards/:id
func (h *Handler) UpdateCard(c echo.Context) error {
	var req cardRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	card, err := h.decks.UpdateCard(c.Request().Context(), c.Param("id"), req.Front, req.Back)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

// DeleteCard handles DELETE /api/v1/cards/:id
func (h *Handler) DeleteCard(c echo.Context) error {
	if err := h.decks.DeleteCard(c.Request().Context(), c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateCards handles POST /api/v1/decks/:id/generate. It calls the
// completion gateway and stores the resulting cards in the deck.
func (h *Handler) GenerateCards(c echo.Context) error {
	var req generate.Request
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	ctx := c.Request().Context()
	deckID := c.Param("id")

	// Fail on a missing deck before spending gateway tokens.
	if _, err := h.decks.GetDeck(ctx, deckID); err != nil {
		return handleError(c, err)
	}

	result, err := h.generator.Generate(ctx, req)
	if err != nil {
		return handleError(c, err)
	}

	cards, err := h.decks.AddGeneratedCards(ctx, deckID, result.Cards)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"cards":      cards,
		"model":      result.Model,
		"from_cache": result.FromCache,
	})
}

// DueCards handles GET /api/v1/decks/:id/review?limit=N
func (h *Handler) DueCards(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return handleError(c, core.NewValidationError("invalid limit: "+raw))
		}
		limit = n
	}

	cards, err := h.reviews.DueCards(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"cards": cards})
}

type gradeRequest struct {
	Grade string `json:"grade"`
}

// GradeCard handles POST /api/v1/cards/:id/review
func (h *Handler) GradeCard(c echo.Context) error {
	var req gradeRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	grade, err := review.ParseGrade(req.Grade)
	if err != nil {
		return handleError(c, err)
	}

	card, err := h.reviews.GradeCard(c.Request().Context(), c.Param("id"), grade)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

// handleError converts application errors to HTTP responses.
func handleError(c echo.Context, err error) error {
	var appErr *core.Error
	if errors.As(err, &appErr) {
		return c.JSON(appErr.HTTPStatusCode(), appErr.ToJSON())
	}

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
