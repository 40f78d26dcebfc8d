package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBalanceEffect_Apply(t *testing.T) {
	tests := []struct {
		name     string
		kind     EntryKind
		balance  decimal.Decimal
		amount   decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "loan adds amount",
			kind:     EntryKindLoan,
			balance:  decimal.NewFromInt(100),
			amount:   decimal.NewFromInt(50),
			expected: decimal.NewFromInt(150),
		},
		{
			name:     "payment subtracts amount",
			kind:     EntryKindPayment,
			balance:  decimal.NewFromInt(100),
			amount:   decimal.NewFromInt(40),
			expected: decimal.NewFromInt(60),
		},
		{
			name:     "payment larger than balance floors at zero",
			kind:     EntryKindPayment,
			balance:  decimal.NewFromInt(100),
			amount:   decimal.NewFromInt(250),
			expected: decimal.Zero,
		},
		{
			name:     "payment equal to balance reaches zero",
			kind:     EntryKindPayment,
			balance:  decimal.NewFromInt(100),
			amount:   decimal.NewFromInt(100),
			expected: decimal.Zero,
		},
		{
			name:     "zero loan is a no-op",
			kind:     EntryKindLoan,
			balance:  decimal.NewFromInt(70),
			amount:   decimal.Zero,
			expected: decimal.NewFromInt(70),
		},
		{
			name:     "fractional amounts are exact",
			kind:     EntryKindLoan,
			balance:  decimal.RequireFromString("0.1"),
			amount:   decimal.RequireFromString("0.2"),
			expected: decimal.RequireFromString("0.3"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.kind.Effect().Apply(tt.balance, tt.amount)
			if !got.Equal(tt.expected) {
				t.Errorf("expected balance %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestBalanceEffect_Adjust(t *testing.T) {
	tests := []struct {
		name     string
		kind     EntryKind
		balance  decimal.Decimal
		delta    decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "loan increase",
			kind:     EntryKindLoan,
			balance:  decimal.NewFromInt(100),
			delta:    decimal.NewFromInt(50),
			expected: decimal.NewFromInt(150),
		},
		{
			name:     "loan decrease",
			kind:     EntryKindLoan,
			balance:  decimal.NewFromInt(100),
			delta:    decimal.NewFromInt(-40),
			expected: decimal.NewFromInt(60),
		},
		{
			name:     "loan decrease below zero floors",
			kind:     EntryKindLoan,
			balance:  decimal.NewFromInt(30),
			delta:    decimal.NewFromInt(-40),
			expected: decimal.Zero,
		},
		{
			name:     "payment increase lowers balance",
			kind:     EntryKindPayment,
			balance:  decimal.NewFromInt(100),
			delta:    decimal.NewFromInt(30),
			expected: decimal.NewFromInt(70),
		},
		{
			name:     "payment increase floors at zero",
			kind:     EntryKindPayment,
			balance:  decimal.NewFromInt(10),
			delta:    decimal.NewFromInt(30),
			expected: decimal.Zero,
		},
		{
			name:     "payment decrease raises balance",
			kind:     EntryKindPayment,
			balance:  decimal.NewFromInt(10),
			delta:    decimal.NewFromInt(-30),
			expected: decimal.NewFromInt(40),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.kind.Effect().Adjust(tt.balance, tt.delta)
			if !got.Equal(tt.expected) {
				t.Errorf("expected balance %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestBalanceEffect_ReverseIsUnclamped(t *testing.T) {
	loan := EntryKindLoan.Effect().Reverse(decimal.NewFromInt(20), decimal.NewFromInt(50))
	if !loan.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("expected loan reversal to reach -30, got %s", loan)
	}

	payment := EntryKindPayment.Effect().Reverse(decimal.Zero, decimal.NewFromInt(50))
	if !payment.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected payment reversal to add back 50, got %s", payment)
	}
}

func TestBalanceEffect_LoanRoundTrip(t *testing.T) {
	start := decimal.NewFromInt(275)
	amount := decimal.NewFromInt(125)

	effect := EntryKindLoan.Effect()
	got := effect.Reverse(effect.Apply(start, amount), amount)

	if !got.Equal(start) {
		t.Errorf("expected create+reverse to restore %s, got %s", start, got)
	}
}
