package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxNameLength  = 255
	MaxEntryAmount = "1000000000000" // 1 trillion
	MaxPageSize    = 100
	DefaultPage    = 20
)

var maxEntryAmount = decimal.RequireFromString(MaxEntryAmount)

// ValidateAmount accepts zero and positive amounts up to MaxEntryAmount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}

	if amount.GreaterThan(maxEntryAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrValidation, MaxEntryAmount)
	}

	return nil
}

func requireField(name, value string) error {
	value = strings.TrimSpace(value)

	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, name)
	}

	if len(value) > MaxNameLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrValidation, name, MaxNameLength)
	}

	return nil
}

// ValidatePagination clamps pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPage
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
