package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/logging"
)

// roundConfigPayload is the wire form of domain.RoundOverride; the deadline is
// given in seconds. Omitted fields keep the configured defaults.
type roundConfigPayload struct {
	DeadlineSeconds     *float64 `json:"deadlineSeconds,omitempty"`
	ClipSeconds         *float64 `json:"clipSeconds,omitempty"`
	Format              *string  `json:"format,omitempty"`
	MaxPoints           *int     `json:"maxPoints,omitempty"`
	FloorPoints         *int     `json:"floorPoints,omitempty"`
	Decay               *string  `json:"decay,omitempty"`
	Steps               *int     `json:"steps,omitempty"`
	FastestBonus        *int     `json:"fastestBonus,omitempty"`
	Normalization       *string  `json:"normalization,omitempty"`
	CloseOnFirstCorrect *bool    `json:"closeOnFirstCorrect,omitempty"`
}

func (p *roundConfigPayload) toDomain() domain.RoundOverride {
	if p == nil {
		return domain.RoundOverride{}
	}
	o := domain.RoundOverride{
		ClipSeconds:         p.ClipSeconds,
		Format:              p.Format,
		MaxPoints:           p.MaxPoints,
		FloorPoints:         p.FloorPoints,
		Steps:               p.Steps,
		FastestBonus:        p.FastestBonus,
		CloseOnFirstCorrect: p.CloseOnFirstCorrect,
	}
	if p.DeadlineSeconds != nil {
		o.Deadline = domain.Ptr(time.Duration(*p.DeadlineSeconds * float64(time.Second)))
	}
	if p.Decay != nil {
		o.Decay = domain.Ptr(domain.DecayMode(*p.Decay))
	}
	if p.Normalization != nil {
		o.Normalization = domain.Ptr(domain.Normalization(*p.Normalization))
	}
	return o
}

type roundStarted struct {
	RoundID string `json:"roundId"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// classify maps engine errors onto an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRoundAlreadyActive):
		return http.StatusConflict, "round_already_active"
	case errors.Is(err, domain.ErrInvalidSpec):
		return http.StatusBadRequest, "invalid_spec"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", logging.Error(err))
	}
	writeJSON(w, status, errorPayload{Message: err.Error(), Code: code})
}
