package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"melody-quiz-service/internal/app"
	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/logging"
)

// ScoreReader serves scoreboards of sessions that have already ended.
type ScoreReader interface {
	Scores(ctx context.Context, sessionID string) (domain.Scoreboard, error)
}

// RouterOptions wires optional collaborators into the router.
type RouterOptions struct {
	Archive ScoreReader
	Logger  *slog.Logger
}

// NewRouter mounts the webhook, REST and websocket endpoints.
func NewRouter(registry *app.Registry, hub *Hub, opts RouterOptions) http.Handler {
	logger := logging.NewComponentLogger(opts.Logger, "http")
	api := &sessionAPI{registry: registry, archive: opts.Archive, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("POST /webhook", NewWebhookHandler(registry, opts.Logger))
	mux.HandleFunc("GET /ws", NewWSHandler(registry, hub, opts.Logger).ServeWS)
	mux.HandleFunc("GET /sessions/{sessionId}/scoreboard", api.scoreboard)
	mux.HandleFunc("GET /sessions/{sessionId}/round", api.round)
	mux.HandleFunc("GET /sessions/{sessionId}/clip", api.clip)
	mux.HandleFunc("GET /sessions/{sessionId}/participants", api.participants)
	mux.HandleFunc("DELETE /sessions/{sessionId}", api.end)
	return mux
}

type sessionAPI struct {
	registry *app.Registry
	archive  ScoreReader
	logger   *slog.Logger
}

func (a *sessionAPI) scoreboard(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	board, err := a.registry.Scoreboard(sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) && a.archive != nil {
		board, err = a.archive.Scores(r.Context(), sessionID)
		if err == nil && len(board.Entries) == 0 {
			err = domain.ErrSessionNotFound
		}
	}
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type roundView struct {
	Round  domain.RoundSnapshot `json:"round"`
	Result *domain.RoundResult  `json:"result,omitempty"`
}

func (a *sessionAPI) round(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	snap, ok := a.registry.Round(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorPayload{Message: "no round for session " + sessionID, Code: "not_found"})
		return
	}
	view := roundView{Round: snap}
	if result, ok := a.registry.Result(sessionID); ok && result.QuestionID == snap.QuestionID {
		view.Result = &result
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *sessionAPI) clip(w http.ResponseWriter, r *http.Request) {
	roundID, clip, ok := a.registry.Clip(r.PathValue("sessionId"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorPayload{Message: "no clip is playing", Code: "not_found"})
		return
	}
	w.Header().Set("Content-Type", contentType(clip.Format))
	w.Header().Set("X-Round-Id", roundID)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(clip.Data)
}

func (a *sessionAPI) participants(w http.ResponseWriter, r *http.Request) {
	roster, err := a.registry.Participants(r.PathValue("sessionId"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (a *sessionAPI) end(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.EndSession(r.Context(), r.PathValue("sessionId")); err != nil {
		writeError(w, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func contentType(format string) string {
	switch format {
	case domain.FormatMP3:
		return "audio/mpeg"
	case domain.FormatOggOpus:
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
