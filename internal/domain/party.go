package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PartyKind discriminates the two kinds of counterparties.
type PartyKind string

const (
	PartyKindShop     PartyKind = "Shop"
	PartyKindCustomer PartyKind = "Customer"
)

// IsValid reports whether k is a known party kind.
func (k PartyKind) IsValid() bool {
	return k == PartyKindShop || k == PartyKindCustomer
}

func (k PartyKind) String() string {
	return string(k)
}

// CodePrefix returns the prefix of human-readable codes issued for the kind.
func (k PartyKind) CodePrefix() string {
	if k == PartyKindShop {
		return "SHOP"
	}
	return "CUST"
}

// BalanceField is the name under which the running balance is exposed.
func (k PartyKind) BalanceField() string {
	if k == PartyKindShop {
		return "totalOutstanding"
	}
	return "totalOwed"
}

// FormatPartyCode renders sequence number n as SHOP-001 / CUST-001.
func FormatPartyCode(kind PartyKind, n int64) string {
	return fmt.Sprintf("%s-%03d", kind.CodePrefix(), n)
}

var shopCategories = map[string]bool{
	"Retail": true, "Wholesale": true, "Service": true, "Manufacturing": true, "Other": true,
}

var customerCategories = map[string]bool{
	"Regular": true, "VIP": true, "Wholesale": true, "Retail": true, "Other": true,
}

// ValidCategory reports whether category belongs to the closed set of the kind.
func (k PartyKind) ValidCategory(category string) bool {
	switch k {
	case PartyKindShop:
		return shopCategories[category]
	case PartyKindCustomer:
		return customerCategories[category]
	default:
		return false
	}
}

// Party is a shop or a customer with a running balance.
//
// For a Shop the balance is the total outstanding towards the shop; for a
// Customer it is the total the customer owes.
type Party struct {
	ID           string          `json:"id"`
	Kind         PartyKind       `json:"kind"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	OwnerName    string          `json:"owner_name,omitempty"`
	Phone        string          `json:"phone"`
	Village      string          `json:"village"`
	Category     string          `json:"category"`
	RegisterDate time.Time       `json:"register_date"`
	Balance      decimal.Decimal `json:"balance"`
	Version      int64           `json:"version"`
	CreatedBy    string          `json:"created_by"`
	IsDeleted    bool            `json:"is_deleted"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// DisplayName is the name used in audit descriptions.
func (p *Party) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.OwnerName
}

// Validate checks the descriptive fields of a party.
func (p *Party) Validate() error {
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: unknown party kind %q", ErrValidation, p.Kind)
	}
	if err := requireField("name", p.Name); err != nil {
		return err
	}
	if p.Kind == PartyKindShop {
		if err := requireField("owner_name", p.OwnerName); err != nil {
			return err
		}
	}
	if err := requireField("phone", p.Phone); err != nil {
		return err
	}
	if err := requireField("village", p.Village); err != nil {
		return err
	}
	if !p.Kind.ValidCategory(p.Category) {
		return fmt.Errorf("%w: category %q is not valid for %s", ErrValidation, p.Category, p.Kind)
	}
	return nil
}

// PartyRef identifies a party by kind and id.
type PartyRef struct {
	Kind PartyKind
	ID   string
}

// PartyFilter narrows party listings. Deleted parties are never listed.
type PartyFilter struct {
	Kind     PartyKind
	Search   string
	Category string
	Limit    int
	Offset   int
}
