package ports

import "github.com/viow-dev/viow-sdk/domain/entities"

// HeaderValidator checks a decoded Header for structural validity.
type HeaderValidator interface {
	// Validate reports every invalid field of h.
	Validate(h *entities.Header) (*entities.HeaderReport, error)
}
