package pack

import (
	"fmt"

	"github.com/clubworks/prepaid/types"
)

// Pricing is pure: the same inputs always produce the same totals, so both
// package composition and transfer top-up computation can call these
// repeatedly without side effects.

// LineTotal computes unitPrice × discountFactor × quantity at full
// precision, rounding once to the currency's minor unit. Rounding per unit
// would let the deviation grow with quantity. Factors outside [0,1] and
// quantities below 1 are validation errors, not silent clamps.
func LineTotal(unitPrice types.Money, discountFactor float64, quantity int64) (types.Money, error) {
	if unitPrice.IsNegative() {
		return types.Zero(unitPrice.Currency), &FieldError{Field: "unit_price", Message: "must not be negative"}
	}
	if discountFactor < 0 || discountFactor > 1 {
		return types.Zero(unitPrice.Currency), &FieldError{
			Field:   "discount_factor",
			Message: fmt.Sprintf("must be within [0,1], got %g", discountFactor),
		}
	}
	if quantity < 1 {
		return types.Zero(unitPrice.Currency), &FieldError{Field: "quantity", Message: "must be at least 1"}
	}

	return unitPrice.Multiply(quantity).ApplyFactor(discountFactor), nil
}

// BundleTotal sums line totals over all lines. Inactive lines still count;
// deactivation is a display concern, not a pricing one. The sum is invariant
// under line reordering.
func BundleTotal(lines []LineItem) (types.Money, error) {
	if len(lines) == 0 {
		return types.Money{}, &FieldError{Field: "lines", Message: "at least one line item required"}
	}

	total := types.Zero(lines[0].UnitPrice.Currency)
	for i, line := range lines {
		lt, err := LineTotal(line.UnitPrice, line.DiscountFactor, line.Quantity)
		if err != nil {
			return types.Zero(total.Currency), fmt.Errorf("line %d: %w", i, err)
		}
		total = total.Add(lt)
	}
	return total, nil
}

// Validate checks a line item for submission. Display code may render
// incomplete lines as zero, but a submitted line must carry a service,
// a positive quantity and a non-negative price.
func (l LineItem) Validate() error {
	if l.ServiceID.IsNil() {
		return &FieldError{Field: "service_id", Message: "is required"}
	}
	_, err := LineTotal(l.UnitPrice, l.DiscountFactor, l.Quantity)
	return err
}

// Total is the display-time total for a line: validation failures render
// as zero rather than an error. Submission paths must call Validate.
func (l LineItem) Total() types.Money {
	t, err := LineTotal(l.UnitPrice, l.DiscountFactor, l.Quantity)
	if err != nil {
		return types.Zero(l.UnitPrice.Currency)
	}
	return t
}

// FieldError reports a pricing validation failure for a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("pack: %s %s", e.Field, e.Message)
}
