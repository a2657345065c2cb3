package generate

import (
	"encoding/json"
	"strings"

	"flashdeck/internal/core"
)

// ParseCards parses a model reply into front/back pairs. The reply is
// expected to be a JSON array of {"front","back"} objects, but models wrap
// their answer in markdown code fences often enough that those are stripped
// first.
func ParseCards(content string) ([]core.GeneratedCard, error) {
	text := stripCodeFence(content)

	var cards []core.GeneratedCard
	if err := json.Unmarshal([]byte(text), &cards); err != nil {
		return nil, core.NewParsingError("model reply is not a JSON card array: "+err.Error(), err)
	}
	if len(cards) == 0 {
		return nil, core.NewParsingError("model reply contains no cards", nil)
	}
	return cards, nil
}

// stripCodeFence removes a surrounding markdown fence (``` or ```json) when
// present and trims whitespace.
func stripCodeFence(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// drop a language tag like "json" on the fence line
	if idx := strings.Index(text, "\n"); idx >= 0 {
		first := strings.TrimSpace(text[:idx])
		if first == "" || isLanguageTag(first) {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
