package orders

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

const maxOrderItems = 50

// fieldError is one entry in the validation details list.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateCreateOrder checks the payload against the business rules and
// returns the derived totals. It touches no external state; now is injected
// so the pickup window is testable.
func ValidateCreateOrder(input CreateOrderInput, now time.Time, minLead, maxLead time.Duration) (Totals, error) {
	var fields []fieldError

	if input.BusinessID == uuid.Nil {
		fields = append(fields, fieldError{Field: "business_id", Message: "is required"})
	}
	if !input.PaymentMethod.IsValid() {
		fields = append(fields, fieldError{Field: "payment_method", Message: "is invalid"})
	}

	if input.PickupDatetime.IsZero() {
		fields = append(fields, fieldError{Field: "pickup_datetime", Message: "is required"})
	} else {
		// Strict lower bound: exactly now+minLead is too soon.
		if !input.PickupDatetime.After(now.Add(minLead)) {
			fields = append(fields, fieldError{Field: "pickup_datetime", Message: "is too soon"})
		}
		if input.PickupDatetime.After(now.Add(maxLead)) {
			fields = append(fields, fieldError{Field: "pickup_datetime", Message: "is too far in the future"})
		}
	}

	if len(input.Items) == 0 {
		fields = append(fields, fieldError{Field: "items", Message: "must not be empty"})
	}
	if len(input.Items) > maxOrderItems {
		fields = append(fields, fieldError{Field: "items", Message: "has too many entries"})
	}

	seen := make(map[uuid.UUID]bool, len(input.Items))
	subtotal := decimal.Zero
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			fields = append(fields, fieldError{Field: itemField(i, "product_id"), Message: "is required"})
			continue
		}
		if seen[item.ProductID] {
			fields = append(fields, fieldError{Field: itemField(i, "product_id"), Message: "is duplicated"})
		}
		seen[item.ProductID] = true
		if item.Quantity < 1 {
			fields = append(fields, fieldError{Field: itemField(i, "quantity"), Message: "must be at least 1"})
		}
		if item.UnitPrice.Sign() < 0 {
			fields = append(fields, fieldError{Field: itemField(i, "unit_price"), Message: "must not be negative"})
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if input.DiscountAmount.Sign() < 0 {
		fields = append(fields, fieldError{Field: "discount_amount", Message: "must not be negative"})
	}
	if input.TaxAmount.Sign() < 0 {
		fields = append(fields, fieldError{Field: "tax_amount", Message: "must not be negative"})
	}

	total := subtotal.Sub(input.DiscountAmount).Add(input.TaxAmount)
	if len(fields) == 0 && total.Sign() < 0 {
		fields = append(fields, fieldError{Field: "discount_amount", Message: "exceeds the order subtotal"})
	}

	if len(fields) > 0 {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "order validation failed").
			WithDetails(fields)
	}

	return Totals{
		Subtotal: subtotal,
		Discount: input.DiscountAmount,
		Tax:      input.TaxAmount,
		Total:    total,
	}, nil
}

func itemField(index int, name string) string {
	return "items[" + strconv.Itoa(index) + "]." + name
}
