package identity

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Role is closed: the zero value is not a valid role and ParseRole rejects anything else.
type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleSeller
	RoleAdmin
)

var ErrUnknownRole = errors.New("unknown role")

func ParseRole(s string) (Role, error) {
	switch s {
	case "customer":
		return RoleCustomer, nil
	case "seller":
		return RoleSeller, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleSeller:
		return "seller"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Principal is the authenticated caller of a user-facing operation.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	Name   string    `json:"name,omitempty"`
	Email  string    `json:"email,omitempty"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) Valid() bool { return p.UserID != uuid.Nil && p.Role.Valid() }
