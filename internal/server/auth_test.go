package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, &Config{MasterKey: "secret"})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing header", "/api/v1/decks", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/decks", "Basic secret", http.StatusUnauthorized},
		{"wrong key", "/api/v1/decks", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "/api/v1/decks", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, strings.NewReader(""))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthErrorShape(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, &Config{MasterKey: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/decks", strings.NewReader(""))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, "authentication_error", body.Error.Type)
	assert.Equal(t, "missing authorization header", body.Error.Message)
}

func TestNoAuthWhenKeyUnset(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/decks", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
