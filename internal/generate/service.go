// Package generate turns a topic or source text into flashcards through the
// completion gateway.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flashdeck/internal/cache"
	"flashdeck/internal/core"
)

// Card-count bounds accepted by the API.
const (
	DefaultCardCount = 10
	MaxCardCount     = 50
)

// systemPrompt pins the model to the output contract ParseCards expects.
const systemPrompt = "You are a flashcard author. Reply with a JSON array of objects, " +
	`each with exactly two string fields "front" and "back". ` +
	"The front is a question or term, the back is the answer or definition. " +
	"Reply with the JSON array only, no prose and no markdown."

// Completer issues one chat completion exchange. *openrouter.Client
// implements it; tests substitute a fake.
type Completer interface {
	GetChatCompletion(ctx context.Context, req *core.CompletionRequest) (*core.CompletionResponse, error)
}

// Request describes one generation call. Exactly one of Topic or Text is
// required; Text takes precedence as source material.
type Request struct {
	Topic string `json:"topic"`
	Text  string `json:"text"`
	Count int    `json:"count"`
	Model string `json:"model"`
}

// Result carries the generated cards plus provenance for the caller.
type Result struct {
	Cards     []core.GeneratedCard `json:"cards"`
	Model     string               `json:"model"`
	FromCache bool                 `json:"from_cache"`
}

// Service generates flashcards. Identical requests within the cache TTL are
// answered without a gateway round trip.
type Service struct {
	client       Completer
	cache        cache.Cache
	defaultModel string
}

// NewService creates a generation service. cache may be nil to disable
// caching.
func NewService(client Completer, c cache.Cache, defaultModel string) *Service {
	return &Service{client: client, cache: c, defaultModel: defaultModel}
}

// Generate produces flashcards for the request.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Topic == "" && req.Text == "" {
		return nil, core.NewValidationError("topic or text is required")
	}
	if req.Count < 0 || req.Count > MaxCardCount {
		return nil, core.NewValidationError(fmt.Sprintf("count must be between 1 and %d", MaxCardCount))
	}
	if req.Count == 0 {
		req.Count = DefaultCardCount
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	prompt := buildUserPrompt(req)
	key := cache.Key(model, prompt)

	if s.cache != nil {
		entry, err := s.cache.Get(ctx, key)
		if err != nil {
			// a broken cache must not break generation
			slog.Warn("generation cache read failed", "error", err)
		} else if entry != nil {
			return &Result{Cards: entry.Cards, Model: entry.Model, FromCache: true}, nil
		}
	}

	resp, err := s.client.GetChatCompletion(ctx, &core.CompletionRequest{
		Model: model,
		Messages: []core.ChatMessage{
			{Role: core.RoleSystem, Content: systemPrompt},
			{Role: core.RoleUser, Content: prompt},
		},
		Temperature: core.Float64(0.3),
	})
	if err != nil {
		return nil, err
	}

	// The client guarantees choices[0].message.content exists and is text.
	cards, err := ParseCards(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		entry := &cache.Entry{Cards: cards, Model: model, CreatedAt: time.Now().UTC()}
		if err := s.cache.Set(ctx, key, entry); err != nil {
			slog.Warn("generation cache write failed", "error", err)
		}
	}

	slog.Info("generated flashcards",
		"model", model,
		"cards", len(cards),
		"total_tokens", resp.Usage.TotalTokens,
	)

	return &Result{Cards: cards, Model: model}, nil
}

func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create %d flashcards", req.Count)
	if req.Text != "" {
		b.WriteString(" from the following material:\n\n")
		b.WriteString(req.Text)
	} else {
		fmt.Fprintf(&b, " about: %s", req.Topic)
	}
	return b.String()
}
