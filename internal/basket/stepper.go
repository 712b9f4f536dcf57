package basket

import (
	"github.com/google/uuid"

	"pipshop/internal/models"
)

// Step is the result of a quantity stepper click.
type Step struct {
	Value   int  `json:"value"`
	Changed bool `json:"changed"`
}

// Increase steps quantity up by one when stock allows it. With a non-nil
// basketID the check counts what that basket already holds of the variant.
func (s *Service) Increase(variantID uuid.UUID, quantity int, basketID uuid.UUID) (Step, error) {
	v, err := s.variants.FindByID(variantID)
	if err != nil {
		return Step{}, err
	}
	if v == nil {
		return Step{}, ErrVariantNotFound
	}

	current := 0
	if basketID != uuid.Nil {
		b, err := s.store.FindByID(basketID)
		if err != nil {
			return Step{}, err
		}
		if b != nil {
			if item := b.Item(models.ItemRef(variantID)); item != nil {
				current = item.Quantity
			}
		}
	}

	if !CanIncrease(v.Stock, current, quantity+1) {
		return Step{Value: quantity}, nil
	}
	return Step{Value: quantity + 1, Changed: true}, nil
}

// Decrease steps quantity down by one, never below 1.
func Decrease(quantity int) Step {
	if quantity > 1 {
		return Step{Value: quantity - 1, Changed: true}
	}
	return Step{Value: 1, Changed: quantity != 1}
}
