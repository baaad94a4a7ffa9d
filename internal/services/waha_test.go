package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retreat_app_echo/internal/config"
)

func TestNormalizeChatID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ten digit number",
			input:    "6135551234",
			expected: "16135551234@c.us",
		},
		{
			name:     "number with country code",
			input:    "16135551234",
			expected: "16135551234@c.us",
		},
		{
			name:     "formatted number",
			input:    "+1 (613) 555-1234",
			expected: "16135551234@c.us",
		},
		{
			name:     "group id",
			input:    "120363407813232111@g.us",
			expected: "120363407813232111@g.us",
		},
		{
			name:     "number with suffix",
			input:    "6135551234@c.us",
			expected: "16135551234@c.us",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeChatID(tt.input))
		})
	}
}

func TestWahaSendMessage(t *testing.T) {
	var paths []string
	var text map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		if r.URL.Path == "/api/sendText" {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&text))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewWahaService(config.WahaConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
	svc.pause = func(time.Duration) {}

	require.NoError(t, svc.SendMessage(context.Background(), "6135551234", "hello"))
	assert.Equal(t, []string{"/api/sendSeen", "/api/startTyping", "/api/stopTyping", "/api/sendText"}, paths)
	assert.Equal(t, "16135551234@c.us", text["chatId"])
	assert.Equal(t, "hello", text["text"])
}

func TestWahaSendMessageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not started", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	svc := NewWahaService(config.WahaConfig{BaseURL: srv.URL})
	svc.pause = func(time.Duration) {}

	err := svc.SendMessage(context.Background(), "6135551234", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send seen")
	assert.Contains(t, err.Error(), "422")
}
