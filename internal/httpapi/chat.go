package httpapi

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/assistant"
	"github.com/nuno-ui/abeto-task-manager-sub000/internal/otel"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// handleChat answers POST /chat through the assistant. limiter may be nil.
func (a *App) handleChat(limiter *rate.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if !a.Assistant.Enabled() {
			otel.RecordChat(r.Context(), "disabled")
			writeJSONError(w, http.StatusServiceUnavailable, assistant.ErrDisabled.Error())
			return
		}
		if limiter != nil && !limiter.Allow() {
			otel.RecordChat(r.Context(), "limited")
			w.Header().Set("Retry-After", "10")
			writeJSONError(w, http.StatusTooManyRequests, "chat rate limit exceeded")
			return
		}
		var req models.ChatRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		reply, err := a.Assistant.Chat(r.Context(), req.Messages)
		if err != nil {
			otel.RecordChat(r.Context(), "error")
			if statusFor(err) != http.StatusInternalServerError {
				writeError(w, err)
				return
			}
			// Upstream model failures are not ours.
			slog.Warn("chat failed", "err", err)
			writeJSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		otel.RecordChat(r.Context(), "ok")
		writeJSON(w, models.ChatResponse{Reply: reply})
	}
}
