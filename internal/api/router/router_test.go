package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superclinic/clinic-assistant/internal/assistant"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Chat(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

func newTestRouter(chat assistant.ChatService) http.Handler {
	return New(&Config{
		Logger:      logging.Default(),
		ChatHandler: assistant.NewHandler(chat, logging.Default()),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&stubChat{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&stubChat{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRoute(t *testing.T) {
	r := newTestRouter(&stubChat{reply: "hello there"})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"userId":"u","userMessage":"hi"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello there")
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(&stubChat{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
