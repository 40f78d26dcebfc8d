package domain

import (
	"context"
	"errors"
)

// Actor is the authenticated caller of a mutation. The ledger trusts the
// ID verbatim and stores it on entries and audit records.
type Actor struct {
	ID   string
	Role Role
}

// Role represents a caller's access level
type Role string

const (
	// RoleAdmin may delete parties and entries
	RoleAdmin Role = "admin"

	// RoleOperator can create and update parties and entries
	RoleOperator Role = "operator"

	// RoleViewer can only view resources, no mutations
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanWrite checks if the role can create or update resources
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleOperator
}

// CanDelete checks if the role can delete resources
func (r Role) CanDelete() bool {
	return r == RoleAdmin
}

type actorKey struct{}

// ContextWithActor returns ctx carrying actor.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext extracts the actor placed by the auth middleware.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(*Actor)
	return actor, ok && actor != nil
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)

type requestIDKey struct{}

// ContextWithRequestID returns ctx carrying the request correlation id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
