package edit

import (
	"errors"
	"fmt"
	"strings"

	"cutplan/internal/project"
)

// Sentinel markers for the error kinds surfaced at the Apply boundary.
// Wrap tags an error with one of these so callers can classify it without
// string matching.
var (
	ErrValidation       = errors.New("validation error")
	ErrInvariant        = errors.New("invariant violation")
	ErrNotFound         = errors.New("not found")
	ErrReplayDivergence = errors.New("replay divergence")
	ErrPersistence      = errors.New("persistence error")
)

// Wrap builds an error message that includes command context while tagging
// it with the provided marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to the structured kind string the command API returns.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrReplayDivergence):
		return "replay_divergence"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	case errors.Is(err, ErrNotFound), errors.Is(err, project.ErrNotFound):
		return "not_found"
	default:
		return "persistence"
	}
}

// classify tags handler errors that bubbled up without a marker: missing
// entities become not-found, everything else is a persistence failure.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrInvariant) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrReplayDivergence) ||
		errors.Is(err, ErrPersistence) {
		return err
	}
	if errors.Is(err, project.ErrNotFound) {
		return Wrap(ErrNotFound, operation, "", err)
	}
	return Wrap(ErrPersistence, operation, "", err)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "command failure"
	}
	return strings.Join(parts, ": ")
}
