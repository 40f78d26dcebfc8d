package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

// CreatePartyRequest represents a request to register a shop or a customer.
type CreatePartyRequest struct {
	Name         string     `json:"name"`
	OwnerName    string     `json:"owner_name,omitempty"`
	Phone        string     `json:"phone"`
	Village      string     `json:"village"`
	Category     string     `json:"category"`
	RegisterDate *time.Time `json:"register_date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreatePartyRequest) ToUseCaseInput(kind domain.PartyKind, actorID string) usecase.CreatePartyInput {
	return usecase.CreatePartyInput{
		ActorID:      actorID,
		Kind:         kind,
		Name:         r.Name,
		OwnerName:    r.OwnerName,
		Phone:        r.Phone,
		Village:      r.Village,
		Category:     r.Category,
		RegisterDate: r.RegisterDate,
	}
}

// UpdatePartyRequest carries descriptive changes. Omitted fields keep their value.
type UpdatePartyRequest struct {
	Name      string `json:"name,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Village   string `json:"village,omitempty"`
	Category  string `json:"category,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdatePartyRequest) ToUseCaseInput(kind domain.PartyKind, id, actorID string) usecase.UpdatePartyInput {
	return usecase.UpdatePartyInput{
		ActorID:   actorID,
		Kind:      kind,
		ID:        id,
		Name:      r.Name,
		OwnerName: r.OwnerName,
		Phone:     r.Phone,
		Village:   r.Village,
		Category:  r.Category,
	}
}

// CreateEntryRequest books a loan or a payment.
//
// PartyKind may be omitted, in which case it is derived from Direction.
// OrderLetter, Month and Year apply to loans; PaymentNumber, DatePaid and
// LoanID to payments.
type CreateEntryRequest struct {
	Direction       string     `json:"direction"`
	PartyKind       string     `json:"party_kind,omitempty"`
	PartyID         string     `json:"party_id"`
	Amount          string     `json:"amount"`
	OrderLetter     string     `json:"order_letter,omitempty"`
	Month           string     `json:"month,omitempty"`
	Year            int        `json:"year,omitempty"`
	PaymentNumber   string     `json:"payment_number,omitempty"`
	DatePaid        *time.Time `json:"date_paid,omitempty"`
	LoanID          *string    `json:"loan_id,omitempty"`
	ImagesFolderKey *string    `json:"images_folder_key,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateEntryRequest) ToUseCaseInput(kind domain.EntryKind, actorID string) (usecase.CreateEntryInput, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return usecase.CreateEntryInput{}, err
	}

	direction := domain.Direction(r.Direction)
	partyKind := domain.PartyKind(r.PartyKind)
	if partyKind == "" {
		partyKind, _ = direction.PartyKind()
	}

	input := usecase.CreateEntryInput{
		ActorID:         actorID,
		Kind:            kind,
		Direction:       direction,
		PartyKind:       partyKind,
		PartyID:         r.PartyID,
		Amount:          amount,
		ImagesFolderKey: r.ImagesFolderKey,
	}

	if kind == domain.EntryKindLoan {
		input.Reference = r.OrderLetter
		input.Month = r.Month
		input.Year = r.Year
	} else {
		input.Reference = r.PaymentNumber
		input.DatePaid = r.DatePaid
		input.LoanID = r.LoanID
	}

	return input, nil
}

// UpdateEntryRequest carries entry changes. Omitted fields keep their value.
type UpdateEntryRequest struct {
	Amount          *string    `json:"amount,omitempty"`
	OrderLetter     string     `json:"order_letter,omitempty"`
	Month           string     `json:"month,omitempty"`
	Year            int        `json:"year,omitempty"`
	PaymentNumber   string     `json:"payment_number,omitempty"`
	DatePaid        *time.Time `json:"date_paid,omitempty"`
	LoanID          *string    `json:"loan_id,omitempty"`
	ImagesFolderKey *string    `json:"images_folder_key,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateEntryRequest) ToUseCaseInput(kind domain.EntryKind, id, actorID string) (usecase.UpdateEntryInput, error) {
	input := usecase.UpdateEntryInput{
		ActorID:         actorID,
		Kind:            kind,
		ID:              id,
		ImagesFolderKey: r.ImagesFolderKey,
	}

	if r.Amount != nil {
		amount, err := parseAmount(*r.Amount)
		if err != nil {
			return usecase.UpdateEntryInput{}, err
		}
		input.Amount = &amount
	}

	if kind == domain.EntryKindLoan {
		input.Reference = r.OrderLetter
		input.Month = r.Month
		input.Year = r.Year
	} else {
		input.Reference = r.PaymentNumber
		input.DatePaid = r.DatePaid
		input.LoanID = r.LoanID
	}

	return input, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", domain.ErrValidation, s)
	}
	return amount, nil
}
