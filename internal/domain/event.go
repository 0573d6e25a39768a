package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventPending  EventStatus = "PENDING"
	EventApproved EventStatus = "APPROVED"
	EventDeclined EventStatus = "DECLINED"
)

// Event carries the bookable inventory for one occasion. RemainingTickets is
// mutated only through the booking store's guarded updates; everything else is
// fixed at creation except Status, which moves PENDING -> APPROVED/DECLINED
// through the admin workflow.
type Event struct {
	ID               uuid.UUID
	OrganizerID      uuid.UUID
	Title            string
	Venue            string
	StartsAt         time.Time
	Price            float64
	TotalTickets     int
	RemainingTickets int
	Status           EventStatus
	CreatedAt        time.Time
}

func NewEvent(organizerID uuid.UUID, title, venue string, startsAt time.Time, price float64, totalTickets int) (*Event, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if totalTickets < 0 {
		return nil, fmt.Errorf("%w: total tickets must be >= 0", ErrInvalidInput)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	return &Event{
		ID:               uuid.New(),
		OrganizerID:      organizerID,
		Title:            title,
		Venue:            venue,
		StartsAt:         startsAt,
		Price:            price,
		TotalTickets:     totalTickets,
		RemainingTickets: totalTickets,
		Status:           EventPending,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// Open reports whether the event accepts bookings.
func (e *Event) Open() bool {
	return e.Status == EventApproved
}
