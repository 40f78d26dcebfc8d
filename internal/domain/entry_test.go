package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidatePairing(t *testing.T) {
	tests := []struct {
		name    string
		dir     Direction
		kind    PartyKind
		wantErr error
	}{
		{"shop direction on shop", DirectionFromShop, PartyKindShop, nil},
		{"customer direction on customer", DirectionToCustomer, PartyKindCustomer, nil},
		{"shop direction on customer", DirectionFromShop, PartyKindCustomer, ErrInvalidDirectionPairing},
		{"customer direction on shop", DirectionToCustomer, PartyKindShop, ErrInvalidDirectionPairing},
		{"unknown direction", Direction("SIDEWAYS"), PartyKindShop, ErrValidation},
		{"unknown party kind", DirectionFromShop, PartyKind("Bank"), ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePairing(tt.dir, tt.kind)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPairingErrorIsNotValidationError(t *testing.T) {
	err := ValidatePairing(DirectionFromShop, PartyKindCustomer)
	if errors.Is(err, ErrValidation) {
		t.Fatal("pairing error must be distinguishable from generic validation errors")
	}
}

func TestEntry_Validate(t *testing.T) {
	validLoan := func() *Entry {
		return &Entry{
			Kind:      EntryKindLoan,
			Direction: DirectionFromShop,
			PartyKind: PartyKindShop,
			PartyID:   "party-1",
			Amount:    decimal.NewFromInt(500),
			Reference: "A",
			Period:    &Period{Month: "March", Year: 2024},
		}
	}
	validPayment := func() *Entry {
		return &Entry{
			Kind:      EntryKindPayment,
			Direction: DirectionToCustomer,
			PartyKind: PartyKindCustomer,
			PartyID:   "party-2",
			Amount:    decimal.NewFromInt(200),
			Reference: "P-17",
		}
	}

	tests := []struct {
		name    string
		entry   func() *Entry
		wantErr error
	}{
		{"valid loan", validLoan, nil},
		{"valid payment", validPayment, nil},
		{"loan without order letter", func() *Entry { e := validLoan(); e.Reference = ""; return e }, ErrValidation},
		{"loan without period", func() *Entry { e := validLoan(); e.Period = nil; return e }, ErrValidation},
		{"loan with bad month", func() *Entry { e := validLoan(); e.Period.Month = "Smarch"; return e }, ErrValidation},
		{"loan with bad year", func() *Entry { e := validLoan(); e.Period.Year = 12; return e }, ErrValidation},
		{"payment without number", func() *Entry { e := validPayment(); e.Reference = " "; return e }, ErrValidation},
		{"negative amount", func() *Entry { e := validPayment(); e.Amount = decimal.NewFromInt(-5); return e }, ErrInvalidAmount},
		{"missing party", func() *Entry { e := validPayment(); e.PartyID = ""; return e }, ErrValidation},
		{"unknown kind", func() *Entry { e := validPayment(); e.Kind = "Gift"; return e }, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry().Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEntry_CloneIsDeep(t *testing.T) {
	paid := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	loanID := "loan-1"
	original := &Entry{
		ID:       "e-1",
		Kind:     EntryKindPayment,
		Amount:   decimal.NewFromInt(10),
		DatePaid: &paid,
		LoanID:   &loanID,
		Period:   &Period{Month: "March", Year: 2024},
	}

	clone := original.Clone()
	clone.Period.Month = "April"
	*clone.LoanID = "loan-2"
	*clone.DatePaid = paid.AddDate(0, 1, 0)

	if original.Period.Month != "March" {
		t.Errorf("expected original period untouched, got %s", original.Period.Month)
	}
	if *original.LoanID != "loan-1" {
		t.Errorf("expected original loan id untouched, got %s", *original.LoanID)
	}
	if !original.DatePaid.Equal(paid) {
		t.Errorf("expected original date untouched, got %s", original.DatePaid)
	}
}

func TestAuditWriteError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&AuditWriteError{TargetKind: TargetLoan, TargetID: "e-1", Err: cause})

	if !errors.Is(err, ErrAuditWrite) {
		t.Error("expected AuditWriteError to match ErrAuditWrite")
	}
	if !errors.Is(err, cause) {
		t.Error("expected AuditWriteError to unwrap to its cause")
	}

	var awe *AuditWriteError
	if !errors.As(err, &awe) || awe.TargetID != "e-1" {
		t.Errorf("expected errors.As to extract target, got %+v", awe)
	}
}
