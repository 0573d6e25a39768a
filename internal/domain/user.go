package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Identity is the authenticated caller as resolved by the auth layer. The
// booking engine trusts it verbatim.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// CanCancelBooking: only the booking's owner or an admin may cancel it.
func (id Identity) CanCancelBooking(b *Booking) bool {
	return id.Role == RoleAdmin || id.UserID == b.UserID
}

// CanCreateEvents: organizers and admins may submit events.
func (id Identity) CanCreateEvents() bool {
	return id.Role == RoleOrganizer || id.Role == RoleAdmin
}

// CanModerateEvents: approval and decline are admin-only.
func (id Identity) CanModerateEvents() bool {
	return id.Role == RoleAdmin
}
