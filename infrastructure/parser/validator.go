package parser

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/viow-dev/viow-sdk/domain/entities"
	"github.com/viow-dev/viow-sdk/domain/ports"
)

// validate is shared; building a validator caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// StructHeaderValidator implements HeaderValidator with struct tags.
type StructHeaderValidator struct{}

// NewHeaderValidator creates a new StructHeaderValidator.
func NewHeaderValidator() ports.HeaderValidator {
	return &StructHeaderValidator{}
}

// Validate reports every field of h that violates its tag.
func (v *StructHeaderValidator) Validate(h *entities.Header) (*entities.HeaderReport, error) {
	if h == nil {
		return nil, fmt.Errorf("nil header")
	}
	report := &entities.HeaderReport{}

	err := validate.Struct(h)
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		return report, nil
	case !errors.As(err, &verrs):
		return nil, err
	}
	for _, fe := range verrs {
		report.Problems = append(report.Problems, entities.HeaderProblem{
			Field: fe.Field(), Rule: fe.Tag(), Value: fe.Value(),
		})
	}
	return report, nil
}
