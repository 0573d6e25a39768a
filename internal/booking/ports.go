package booking

import (
	"context"
	"time"

	"github.com/eventhall/ticketing/internal/domain"
	"github.com/google/uuid"
)

// Store is the persistence contract for the booking engine. CreateBooking and
// CancelBooking are atomic units: the implementation must pair the booking
// mutation with the inventory adjustment in a single guarded transaction, and
// must never apply one without the other.
type Store interface {
	GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)

	// CreateBooking decrements the event's remaining tickets by the booking
	// quantity only if the event is approved and enough tickets remain, and
	// inserts the booking. Returns domain.ErrNotFound, domain.ErrInvalidState
	// or domain.ErrInsufficientInventory when the guard rejects.
	CreateBooking(ctx context.Context, b *domain.Booking) error

	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)

	// CancelBooking flips the booking ACTIVE -> CANCELLED and returns its
	// quantity to the event, capped at total tickets. A booking that is not
	// ACTIVE yields domain.ErrInvalidState without touching inventory.
	CancelBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (*domain.Booking, error)

	ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingWithEvent, error)
}

// Auditor records booking activity after the mutation commits. Failures are
// logged, never propagated.
type Auditor interface {
	LogBooking(ctx context.Context, action string, b *domain.Booking) error
}

type nopAuditor struct{}

func (nopAuditor) LogBooking(context.Context, string, *domain.Booking) error { return nil }

// NopAuditor is used where no audit sink is configured.
var NopAuditor Auditor = nopAuditor{}
