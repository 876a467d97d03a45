// Package policy decides who may see or change a booking.
package policy

import (
	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/google/uuid"
)

// Identity is what the authentication layer hands to the services for a validated request.
type Identity struct {
	UserID uuid.UUID
	Role   domain.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == domain.RoleAdmin
}

// CanAccessBooking reports whether id owns b or is an admin. Reads and mutations share this rule.
func CanAccessBooking(id Identity, b *domain.Booking) bool {
	if b == nil {
		return false
	}
	return id.IsAdmin() || (id.UserID != uuid.Nil && id.UserID == b.UserID)
}

// AuthorizeBooking returns a Forbidden error naming action when id may not touch b.
func AuthorizeBooking(id Identity, b *domain.Booking, action string) error {
	if CanAccessBooking(id, b) {
		return nil
	}
	return domain.Forbidden("Not authorized to " + action + " this booking")
}

// RequireAdmin returns a Forbidden error unless id holds the admin role.
func RequireAdmin(id Identity) error {
	if id.IsAdmin() {
		return nil
	}
	return domain.Forbidden("Not authorized as an admin")
}
