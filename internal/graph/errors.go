package graph

import (
	"errors"
	"fmt"

	"dialoguecraft/internal/entity"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrLocked   = errors.New("node is locked")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", entity.ErrValidation, fmt.Sprintf(format, args...))
}

// rejectedBy wraps an error from a lower layer as a validation failure.
func rejectedBy(op string, err error) error {
	if errors.Is(err, entity.ErrValidation) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, entity.ErrValidation, err)
}

func missing(what string, id entity.ID) error {
	return fmt.Errorf("%w: %s %s: %w", entity.ErrValidation, what, id, ErrNotFound)
}
