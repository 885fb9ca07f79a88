package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"melody-quiz-service/internal/app"
	"melody-quiz-service/internal/logging"
)

type WSHandler struct {
	registry *app.Registry
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *app.Registry, hub *Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		hub:      hub,
		logger:   logging.NewComponentLogger(logger, "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuestionID string              `json:"questionId"`
	Config     *roundConfigPayload `json:"config,omitempty"`
}

type answerPayload struct {
	Value string `json:"value"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the round use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if sessionID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing sessionId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	joined, err := h.registry.Join(r.Context(), sessionID, userID, displayName)
	if err != nil {
		_ = conn.WriteJSON(Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.registry.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	events, unsubscribe := h.hub.Subscribe(sessionID)
	defer unsubscribe()
	defer h.registry.Leave(r.Context(), sessionID, userID)

	send := make(chan Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	forwardDone := make(chan struct{})

	// a single writer goroutine owns conn writes; joined goes out before any update
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", logging.Session(sessionID), logging.Error(err))
				return
			}
		}
	}()

	send <- Event{Type: "joined", Payload: joined}
	if roundID, clip, ok := h.registry.Clip(sessionID); ok {
		send <- Event{Type: "clipReady", Payload: clipPayload{
			RoundID:         roundID,
			Format:          clip.Format,
			DurationSeconds: clip.DurationSeconds,
			Audio:           clip.Data,
		}}
	}

	go func() {
		defer close(forwardDone)
		for {
			var ev Event
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev = Event{Type: "scoreboard", Payload: update}
			case engineEvent, ok := <-events:
				if !ok {
					return
				}
				ev = engineEvent
			case <-closeSignals:
				return
			}
			select {
			case send <- ev:
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		select {
		case send <- h.handle(r, sessionID, userID, inbound):
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-forwardDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, sessionID, userID string, inbound inboundMessage) Event {
	switch inbound.Type {
	case "start":
		// an empty payload draws a random question with default settings
		var payload startPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return Event{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}
			}
		}
		roundID, err := h.registry.StartRound(r.Context(), sessionID, payload.QuestionID, payload.Config.toDomain())
		if err != nil {
			_, code := classify(err)
			return Event{Type: "error", Payload: errorPayload{Message: err.Error(), Code: code}}
		}
		return Event{Type: "roundStarted", Payload: roundStarted{RoundID: roundID}}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return Event{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
		}
		result, err := h.registry.SubmitAnswer(r.Context(), sessionID, userID, payload.Value)
		if err != nil {
			_, code := classify(err)
			return Event{Type: "error", Payload: errorPayload{Message: err.Error(), Code: code}}
		}
		return Event{Type: "answerResult", Payload: result}
	default:
		return Event{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}
