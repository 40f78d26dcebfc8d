package domain

import (
	"encoding/json"
	"time"
)

// AuditRecord is an immutable trail entry for one mutation.
type AuditRecord struct {
	ID          string
	ActorID     string // Who performed the action
	Action      AuditAction
	TargetKind  TargetKind
	TargetID    string
	Before      JSON // nil on CREATE
	After       JSON // post-state, includes is_deleted on DELETE
	Description string
	RequestID   string // Request ID for tracing
	CreatedAt   time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction is the kind of mutation recorded.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// TargetKind names the audited entity type.
type TargetKind string

const (
	TargetShop     TargetKind = "Shop"
	TargetCustomer TargetKind = "Customer"
	TargetLoan     TargetKind = "Loan"
	TargetPayment  TargetKind = "Payment"
)

// TargetForParty maps a party kind to its audit target.
func TargetForParty(k PartyKind) TargetKind {
	return TargetKind(k)
}

// TargetForEntry maps an entry kind to its audit target.
func TargetForEntry(k EntryKind) TargetKind {
	return TargetKind(k)
}

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit records
type AuditFilter struct {
	ActorID    string
	Action     AuditAction
	TargetKind TargetKind
	TargetID   string
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}
