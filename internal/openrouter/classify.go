package openrouter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"flashdeck/internal/core"
)

// classify turns one HTTP exchange into a validated response or exactly one
// typed error. It inspects the body regardless of status because the gateway
// embeds error envelopes in 200 responses.
func classify(statusCode int, body []byte) (*core.CompletionResponse, error) {
	if !gjson.ValidBytes(body) {
		switch {
		case statusCode == http.StatusUnauthorized:
			return nil, core.NewAuthenticationError("gateway rejected credentials")
		case statusCode >= 500:
			// Proxies answer 5xx with HTML pages; the status is the signal.
			return nil, core.NewServerError(statusCode, "gateway returned status "+strconv.Itoa(statusCode))
		default:
			return nil, core.NewParsingError("response body is not valid JSON", nil)
		}
	}

	if errEnvelope := gjson.GetBytes(body, "error"); errEnvelope.IsObject() {
		return nil, classifyEnvelope(statusCode, errEnvelope)
	}

	// No embedded envelope: fall back to the raw HTTP status.
	switch {
	case statusCode == http.StatusUnauthorized:
		return nil, core.NewAuthenticationError("gateway rejected credentials")
	case statusCode == http.StatusTooManyRequests:
		return nil, core.NewRateLimitError("gateway rate limit exceeded")
	case statusCode >= 500:
		return nil, core.NewServerError(statusCode, "gateway returned status "+strconv.Itoa(statusCode))
	case statusCode >= 400:
		return nil, core.NewBadRequestError(statusCode, "gateway rejected the request with status "+strconv.Itoa(statusCode))
	}

	return validateCompletion(body)
}

// classifyEnvelope maps the gateway's own error envelope
// {message, type, code} into the taxonomy. Credit exhaustion is checked
// first: it is a rate limit variant, not a distinct kind.
func classifyEnvelope(statusCode int, envelope gjson.Result) *core.Error {
	message := envelope.Get("message").String()
	errType := envelope.Get("type").String()
	code := int(envelope.Get("code").Int())

	switch {
	case code == http.StatusPaymentRequired || isCreditExhaustion(message):
		requested, available := parseTokenCounts(message)
		return core.NewCreditExhaustedError(message, requested, available)
	case code == http.StatusUnauthorized || errType == "invalid_request_error" || isAuthFailure(message):
		return core.NewAuthenticationError(message)
	default:
		if code == 0 {
			if statusCode >= 400 {
				code = statusCode
			} else {
				code = http.StatusBadRequest
			}
		}
		return core.NewAPIError(code, message)
	}
}

// isCreditExhaustion reports whether a gateway message signals prepaid-credit
// exhaustion. The substrings are case-sensitive and match the observed
// gateway wording exactly; a wording change upstream downgrades the error to
// a generic api_error, so all matching policy lives here.
func isCreditExhaustion(message string) bool {
	return strings.Contains(message, "more credits") ||
		strings.Contains(message, "can only afford") ||
		strings.Contains(message, "token limit")
}

// isAuthFailure reports whether a gateway message is auth-shaped. Same
// single-place policy as isCreditExhaustion.
func isAuthFailure(message string) bool {
	return strings.Contains(message, "API key") ||
		strings.Contains(message, "authentication") ||
		strings.Contains(message, "authorized")
}

var (
	requestedTokensRe = regexp.MustCompile(`requested (\d+) tokens`)
	affordTokensRe    = regexp.MustCompile(`afford (\d+)`)
)

// parseTokenCounts extracts requested/available token counts from a credit
// exhaustion message like "You requested 5000 tokens, but can only afford
// 1200". Returns zeros when the counts are absent.
func parseTokenCounts(message string) (requested, available int) {
	if m := requestedTokensRe.FindStringSubmatch(message); m != nil {
		requested, _ = strconv.Atoi(m[1])
	}
	if m := affordTokensRe.FindStringSubmatch(message); m != nil {
		available, _ = strconv.Atoi(m[1])
	}
	return requested, available
}

// validateCompletion enforces the response shape downstream callers rely on:
// a non-empty choices array whose first element carries a message with text
// content. Violations fail loudly here instead of as a nil dereference in a
// caller parsing the content.
func validateCompletion(body []byte) (*core.CompletionResponse, error) {
	choices := gjson.GetBytes(body, "choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return nil, core.NewParsingError("response has no choices", nil)
	}

	first := choices.Array()[0]
	if !first.IsObject() {
		return nil, core.NewParsingError("first choice is not an object", nil)
	}

	message := first.Get("message")
	if !message.IsObject() {
		return nil, core.NewParsingError("first choice has no message object", nil)
	}

	content := message.Get("content")
	if !content.Exists() || content.Type != gjson.String {
		return nil, core.NewParsingError("first choice message content is not a string", nil)
	}

	var resp core.CompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.NewParsingError(fmt.Sprintf("failed to decode response: %v", err), err)
	}
	return &resp, nil
}
