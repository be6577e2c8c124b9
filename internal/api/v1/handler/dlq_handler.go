package handler

import (
	"encoding/json"
	"net/http"

	"studyshare/internal/api/v1/dto"
	"studyshare/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// DLQHandler receives dead-lettered access events pushed by Pub/Sub.
type DLQHandler struct {
	service  service.DLQService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewDLQHandler(s service.DLQService, validate *validator.Validate, l zerolog.Logger) *DLQHandler {
	return &DLQHandler{service: s, validate: validate, logger: l}
}

func (h *DLQHandler) RegisterRoutes(mux *http.ServeMux, pubsubAuthMw func(http.Handler) http.Handler) {
	mux.Handle("POST /dlq/record", pubsubAuthMw(http.HandlerFunc(h.recordDLQ)))
}

func (h *DLQHandler) recordDLQ(w http.ResponseWriter, r *http.Request) {
	var req dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Pub/Sub push payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Invalid Pub/Sub message format: missing message ID", http.StatusBadRequest)
		return
	}

	log := h.logger.With().
		Str("messageId", req.Message.MessageID).
		Str("subscription", req.Subscription).
		Logger()

	if err := h.service.ProcessAndSave(r.Context(), &req); err != nil {
		// Acknowledge anyway; the message is already dead-lettered and a retry would loop.
		log.Error().Err(err).Msg("Failed to save DLQ message to database")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	log.Info().Msg("Saved dead-letter message")
	w.WriteHeader(http.StatusNoContent)
}
