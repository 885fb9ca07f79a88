package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"melody-quiz-service/internal/app"
	"melody-quiz-service/internal/logging"
)

const maxWebhookBody = 64 << 10

// webhookEvent is an inbound platform event translated into engine calls.
type webhookEvent struct {
	Type          string              `json:"type"`
	SessionID     string              `json:"sessionId"`
	ParticipantID string              `json:"participantId"`
	DisplayName   string              `json:"displayName"`
	QuestionID    string              `json:"questionId"`
	Value         string              `json:"value"`
	Config        *roundConfigPayload `json:"config,omitempty"`
}

type webhookEnded struct {
	SessionID string `json:"sessionId"`
	Ended     bool   `json:"ended"`
}

// WebhookHandler accepts bot platform events on a single endpoint.
type WebhookHandler struct {
	registry *app.Registry
	logger   *slog.Logger
}

func NewWebhookHandler(registry *app.Registry, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{registry: registry, logger: logging.NewComponentLogger(logger, "webhook")}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var ev webhookEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err := dec.Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid event payload", Code: "bad_request"})
		return
	}
	if ev.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "sessionId is required", Code: "bad_request"})
		return
	}

	h.logger.Debug("webhook event",
		logging.String(logging.FieldEventType, ev.Type),
		logging.Session(ev.SessionID))

	ctx := r.Context()
	switch ev.Type {
	case "start":
		roundID, err := h.registry.StartRound(ctx, ev.SessionID, ev.QuestionID, ev.Config.toDomain())
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, roundStarted{RoundID: roundID})
	case "answer":
		if ev.ParticipantID == "" {
			writeJSON(w, http.StatusBadRequest, errorPayload{Message: "participantId is required", Code: "bad_request"})
			return
		}
		result, err := h.registry.SubmitAnswer(ctx, ev.SessionID, ev.ParticipantID, ev.Value)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "join":
		board, err := h.registry.Join(ctx, ev.SessionID, ev.ParticipantID, ev.DisplayName)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, board)
	case "end":
		if err := h.registry.EndSession(ctx, ev.SessionID); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, webhookEnded{SessionID: ev.SessionID, Ended: true})
	default:
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "unsupported event type " + ev.Type, Code: "bad_request"})
	}
}
