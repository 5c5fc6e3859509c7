package enums

import "fmt"

// StockStatus flags whether a product can currently be ordered.
type StockStatus string

const (
	StockStatusActive   StockStatus = "active"
	StockStatusInactive StockStatus = "inactive"
)

var validStockStatuses = []StockStatus{
	StockStatusActive,
	StockStatusInactive,
}

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockStatus.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts raw input into a StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}
