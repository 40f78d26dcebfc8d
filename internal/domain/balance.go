package domain

import "github.com/shopspring/decimal"

// BalanceEffect describes how an entry kind moves its party's balance.
//
// Decreasing paths are floored at zero; increasing paths and reversals are not.
type BalanceEffect interface {
	// Apply returns the balance after booking a new entry of amount.
	Apply(balance, amount decimal.Decimal) decimal.Decimal
	// Adjust returns the balance after an entry's amount changed by delta.
	Adjust(balance, delta decimal.Decimal) decimal.Decimal
	// Reverse returns the balance after the entry of amount is removed.
	Reverse(balance, amount decimal.Decimal) decimal.Decimal
}

// Effect returns the balance behaviour of the entry kind.
func (k EntryKind) Effect() BalanceEffect {
	if k == EntryKindPayment {
		return paymentEffect{}
	}
	return loanEffect{}
}

type loanEffect struct{}

func (loanEffect) Apply(balance, amount decimal.Decimal) decimal.Decimal {
	return balance.Add(amount)
}

func (loanEffect) Adjust(balance, delta decimal.Decimal) decimal.Decimal {
	if delta.IsNegative() {
		return floorZero(balance.Add(delta))
	}
	return balance.Add(delta)
}

func (loanEffect) Reverse(balance, amount decimal.Decimal) decimal.Decimal {
	return balance.Sub(amount)
}

type paymentEffect struct{}

func (paymentEffect) Apply(balance, amount decimal.Decimal) decimal.Decimal {
	return floorZero(balance.Sub(amount))
}

func (paymentEffect) Adjust(balance, delta decimal.Decimal) decimal.Decimal {
	return floorZero(balance.Sub(delta))
}

func (paymentEffect) Reverse(balance, amount decimal.Decimal) decimal.Decimal {
	return balance.Add(amount)
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// BalanceChange is the outcome of one balance mutation on a party.
type BalanceChange struct {
	Party   *Party
	Before  decimal.Decimal
	After   decimal.Decimal
	Clamped bool
	Skipped bool
}
