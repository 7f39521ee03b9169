// Package email is a stand-in mail relay that accepts messages and simulates
// delivery time.
package email

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
)

type Handler struct {
	delay    latency.Delayer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(delay latency.Delayer, logger *slog.Logger) *Handler {
	return &Handler{
		delay:    delay,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Message is the body of POST /send.
type Message struct {
	To      string        `json:"to" validate:"required,email"`
	Subject string        `json:"subject" validate:"required"`
	Body    string        `json:"body"`
	Locale  domain.Locale `json:"locale,omitempty" validate:"omitempty,oneof=en ar"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(msg); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "invalid message")
		return
	}

	delay := time.Duration(50+rand.IntN(151)) * time.Millisecond
	if err := h.delay.Wait(r.Context(), delay); err != nil {
		h.logger.Warn("email delivery abandoned", "error", err, "to", msg.To)
		h.writeError(w, http.StatusServiceUnavailable, "delivery abandoned")
		return
	}

	h.logger.Info("email sent", "to", msg.To, "subject", msg.Subject, "locale", msg.Locale)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
