package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind discriminates ledger entries.
type EntryKind string

const (
	EntryKindLoan    EntryKind = "Loan"
	EntryKindPayment EntryKind = "Payment"
)

// IsValid reports whether k is a known entry kind.
func (k EntryKind) IsValid() bool {
	return k == EntryKindLoan || k == EntryKindPayment
}

func (k EntryKind) String() string {
	return string(k)
}

// Direction tells which party kind an entry is booked against.
type Direction string

const (
	DirectionFromShop   Direction = "FROM_SHOP"
	DirectionToCustomer Direction = "TO_CUSTOMER"
)

// PartyKind returns the only party kind the direction may be paired with.
func (d Direction) PartyKind() (PartyKind, bool) {
	switch d {
	case DirectionFromShop:
		return PartyKindShop, true
	case DirectionToCustomer:
		return PartyKindCustomer, true
	default:
		return "", false
	}
}

// ValidatePairing rejects a direction that does not match the party kind.
func ValidatePairing(d Direction, kind PartyKind) error {
	expected, ok := d.PartyKind()
	if !ok {
		return fmt.Errorf("%w: unknown direction %q", ErrValidation, d)
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: unknown party kind %q", ErrValidation, kind)
	}
	if expected != kind {
		return fmt.Errorf("%w: %s cannot be booked against a %s", ErrInvalidDirectionPairing, d, kind)
	}
	return nil
}

// Period is the month a loan is booked for.
type Period struct {
	Month string `json:"month"`
	Year  int    `json:"year"`
}

var months = map[string]time.Month{
	"January": time.January, "February": time.February, "March": time.March,
	"April": time.April, "May": time.May, "June": time.June,
	"July": time.July, "August": time.August, "September": time.September,
	"October": time.October, "November": time.November, "December": time.December,
}

// Validate checks month name and year.
func (p Period) Validate() error {
	if _, ok := months[p.Month]; !ok {
		return fmt.Errorf("%w: month %q is not a month name", ErrValidation, p.Month)
	}
	if p.Year < 1900 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrValidation, p.Year)
	}
	return nil
}

// Entry is a loan or a payment booked against a party.
//
// Reference holds the loan order letter or the payment number.
// Period is set for loans only; DatePaid and LoanID for payments only.
type Entry struct {
	ID              string          `json:"id"`
	Kind            EntryKind       `json:"kind"`
	Direction       Direction       `json:"direction"`
	PartyKind       PartyKind       `json:"party_kind"`
	PartyID         string          `json:"party_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference"`
	Period          *Period         `json:"period,omitempty"`
	DatePaid        *time.Time      `json:"date_paid,omitempty"`
	LoanID          *string         `json:"loan_id,omitempty"`
	ImagesFolderKey *string         `json:"images_folder_key,omitempty"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	CreatedBy       string          `json:"created_by"`
	IsDeleted       bool            `json:"is_deleted"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PartyRef returns the party the entry is booked against.
func (e *Entry) PartyRef() PartyRef {
	return PartyRef{Kind: e.PartyKind, ID: e.PartyID}
}

// Clone returns a deep copy, used for audit "before" snapshots.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Period != nil {
		p := *e.Period
		c.Period = &p
	}
	if e.DatePaid != nil {
		d := *e.DatePaid
		c.DatePaid = &d
	}
	if e.LoanID != nil {
		l := *e.LoanID
		c.LoanID = &l
	}
	if e.ImagesFolderKey != nil {
		k := *e.ImagesFolderKey
		c.ImagesFolderKey = &k
	}
	return &c
}

// Validate checks the kind-specific fields. Pairing is checked separately
// by the balance engine so that it can be reported distinctly.
func (e *Entry) Validate() error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: unknown entry kind %q", ErrValidation, e.Kind)
	}
	if err := ValidateAmount(e.Amount); err != nil {
		return err
	}
	if err := requireField("party_id", e.PartyID); err != nil {
		return err
	}

	switch e.Kind {
	case EntryKindLoan:
		if err := requireField("order_letter", e.Reference); err != nil {
			return err
		}
		if e.Period == nil {
			return fmt.Errorf("%w: month and year are required", ErrValidation)
		}
		return e.Period.Validate()
	case EntryKindPayment:
		return requireField("payment_number", e.Reference)
	}
	return nil
}

// EntryFilter narrows entry listings. Deleted entries are never listed.
type EntryFilter struct {
	Kind      EntryKind
	Direction Direction
	PartyID   string
	Month     string
	Year      int
	Limit     int
	Offset    int
}
