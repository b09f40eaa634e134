package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/superclinic/clinic-assistant/pkg/logging"
)

// ChatService is the surface the HTTP handler needs from the assistant.
type ChatService interface {
	Chat(ctx context.Context, userID, userMessage string) (string, error)
}

// Handler handles HTTP requests for the chat surface.
type Handler struct {
	svc    ChatService
	logger *logging.Logger
}

// NewHandler creates a new chat handler.
func NewHandler(svc ChatService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type chatRequest struct {
	UserID      string `json:"userId"`
	UserMessage string `json:"userMessage"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat handles POST /v1/chat requests.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.UserMessage) == "" {
		http.Error(w, "Both 'userId' and 'userMessage' are required", http.StatusBadRequest)
		return
	}

	reply, err := h.svc.Chat(r.Context(), req.UserID, req.UserMessage)
	if err != nil {
		h.logger.Error("chat turn failed", "error", err, "user_id", req.UserID)
		http.Error(w, "The assistant is unavailable right now. Please try again later.", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{Reply: reply}); err != nil {
		h.logger.Error("failed to encode reply", "error", err)
	}
}
