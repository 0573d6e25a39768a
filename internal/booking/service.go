package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/google/uuid"
)

const maxTxAttempts = 3

// Service is the sole mutation path for bookings and event inventory.
type Service struct {
	store  Store
	audit  Auditor
	logger observability.Logger
}

func NewService(store Store, audit Auditor, logger observability.Logger) *Service {
	if audit == nil {
		audit = NopAuditor
	}
	return &Service{store: store, audit: audit, logger: logger}
}

// CreateBooking reserves quantity tickets for userID on eventID. The
// pre-checks give precise errors cheaply; the store's guarded update is the
// authoritative check under concurrency.
func (s *Service) CreateBooking(ctx context.Context, userID, eventID uuid.UUID, quantity int) (*domain.Booking, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if !event.Open() {
		return nil, fmt.Errorf("%w: event not open for booking", domain.ErrInvalidState)
	}
	if quantity > event.RemainingTickets {
		return nil, fmt.Errorf("%w: %d requested, %d remaining", domain.ErrInsufficientInventory, quantity, event.RemainingTickets)
	}

	b, err := domain.NewBooking(userID, event, quantity)
	if err != nil {
		return nil, err
	}

	if err := s.withRetry(ctx, func() error {
		return s.store.CreateBooking(ctx, b)
	}); err != nil {
		observability.BookingsTotal.WithLabelValues("create", "rejected").Inc()
		return nil, fmt.Errorf("create booking: %w", err)
	}
	observability.BookingsTotal.WithLabelValues("create", "ok").Inc()

	s.logger.WithField("booking_id", b.ID).WithField("event_id", eventID).Info("booking created")
	if err := s.audit.LogBooking(ctx, "booking.created", b); err != nil {
		s.logger.WithError(err).Error("failed to audit booking")
	}
	return b, nil
}

// CancelBooking cancels bookingID on behalf of caller. Only the owner or an
// admin may cancel, and only an active booking; the store guard makes a
// racing duplicate cancel lose without double-crediting inventory.
func (s *Service) CancelBooking(ctx context.Context, caller domain.Identity, bookingID uuid.UUID) (*domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if !caller.CanCancelBooking(b) {
		return nil, fmt.Errorf("%w: not booking owner", domain.ErrForbidden)
	}
	if b.Status != domain.BookingActive {
		return nil, fmt.Errorf("%w: already cancelled", domain.ErrInvalidState)
	}

	var cancelled *domain.Booking
	if err := s.withRetry(ctx, func() error {
		var err error
		cancelled, err = s.store.CancelBooking(ctx, bookingID, time.Now().UTC())
		return err
	}); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			err = fmt.Errorf("%w: already cancelled", domain.ErrInvalidState)
		}
		observability.BookingsTotal.WithLabelValues("cancel", "rejected").Inc()
		return nil, err
	}
	observability.BookingsTotal.WithLabelValues("cancel", "ok").Inc()

	s.logger.WithField("booking_id", bookingID).Info("booking cancelled")
	if err := s.audit.LogBooking(ctx, "booking.cancelled", cancelled); err != nil {
		s.logger.WithError(err).Error("failed to audit cancellation")
	}
	return cancelled, nil
}

func (s *Service) BookingsForUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingWithEvent, error) {
	return s.store.ListBookingsByUser(ctx, userID)
}

// withRetry reruns fn on transient conflicts with exponential backoff.
// Precondition failures surface immediately.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSerializationFailure) && !errors.Is(err, domain.ErrUnavailable) {
			return err
		}
		observability.TxRetries.Inc()
		backoff := time.Duration(1<<attempt) * 50 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if errors.Is(err, domain.ErrSerializationFailure) {
		return fmt.Errorf("%w: too many conflicts", domain.ErrUnavailable)
	}
	return err
}
