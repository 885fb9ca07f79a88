package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a question or its media does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable indicates the backing store or prober could not be reached.
	ErrUnavailable = errors.New("unavailable")
	// ErrInvalidSpec indicates a clip window that does not fit inside its media.
	ErrInvalidSpec = errors.New("invalid clip spec")
	// ErrExtractionFailed covers transcoder failures, empty output and duration mismatches.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrTimeout is returned when the transcoder exceeds its time bound.
	ErrTimeout = errors.New("timeout")
	// ErrRoundAlreadyActive is returned when a session already runs a non-terminal round.
	ErrRoundAlreadyActive = errors.New("round already active")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrOutcomeAlreadyRecorded is returned when a round outcome is applied twice.
	ErrOutcomeAlreadyRecorded = errors.New("round outcome already recorded")
)

// Wrap tags err with marker so callers can classify it with errors.Is, and
// prefixes the message with the component and operation that failed.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrUnavailable
	}
	detail := buildDetail(component, operation, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExpiryReasonFor maps a locate/extract failure to the reason reported on an expired round.
func ExpiryReasonFor(err error) ExpiryReason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ExpiryNotFound
	case errors.Is(err, ErrInvalidSpec):
		return ExpiryInvalidSpec
	case errors.Is(err, ErrTimeout):
		return ExpiryTimeout
	case errors.Is(err, ErrExtractionFailed):
		return ExpiryExtractionFailed
	default:
		return ExpiryUnavailable
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{component, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
