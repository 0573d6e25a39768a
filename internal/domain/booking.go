package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingActive    BookingStatus = "ACTIVE"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is a user's reservation of Quantity tickets for one event.
// TotalPrice is a snapshot of quantity * event price at booking time and is
// never recomputed. Bookings are never deleted; cancellation flips Status
// exactly once and sets CancelledAt.
type Booking struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	EventID     uuid.UUID
	Quantity    int
	TotalPrice  float64
	Status      BookingStatus
	BookedAt    time.Time
	CancelledAt *time.Time
}

func NewBooking(userID uuid.UUID, event *Event, quantity int) (*Booking, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	return &Booking{
		ID:         uuid.New(),
		UserID:     userID,
		EventID:    event.ID,
		Quantity:   quantity,
		TotalPrice: float64(quantity) * event.Price,
		Status:     BookingActive,
		BookedAt:   time.Now().UTC(),
	}, nil
}

// BookingWithEvent joins a booking with a snapshot of its event's display
// fields for user-facing listings.
type BookingWithEvent struct {
	Booking
	EventTitle  string
	EventVenue  string
	EventStarts time.Time
	EventPrice  float64
}
