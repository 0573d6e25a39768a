package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memStore implements Store with the same guarded semantics as the SQL
// adapter: check-and-decrement and check-and-flip happen under one lock.
type memStore struct {
	mu       sync.Mutex
	events   map[uuid.UUID]*domain.Event
	bookings map[uuid.UUID]*domain.Booking
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[uuid.UUID]*domain.Event),
		bookings: make(map[uuid.UUID]*domain.Booking),
	}
}

func (m *memStore) addEvent(e *domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events[e.ID] = &cp
}

func (m *memStore) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) CreateBooking(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[b.EventID]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.EventApproved {
		return domain.ErrInvalidState
	}
	if e.RemainingTickets < b.Quantity {
		return domain.ErrInsufficientInventory
	}
	e.RemainingTickets -= b.Quantity
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memStore) GetBooking(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) CancelBooking(_ context.Context, id uuid.UUID, at time.Time) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if b.Status != domain.BookingActive {
		return nil, domain.ErrInvalidState
	}
	b.Status = domain.BookingCancelled
	b.CancelledAt = &at
	e := m.events[b.EventID]
	e.RemainingTickets += b.Quantity
	if e.RemainingTickets > e.TotalTickets {
		e.RemainingTickets = e.TotalTickets
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) ListBookingsByUser(_ context.Context, userID uuid.UUID) ([]domain.BookingWithEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BookingWithEvent
	for _, b := range m.bookings {
		if b.UserID != userID {
			continue
		}
		e := m.events[b.EventID]
		out = append(out, domain.BookingWithEvent{
			Booking:     *b,
			EventTitle:  e.Title,
			EventVenue:  e.Venue,
			EventStarts: e.StartsAt,
			EventPrice:  e.Price,
		})
	}
	return out, nil
}

// remainingPlusActive verifies inventory conservation: remaining tickets plus
// the quantities of all active bookings must equal total tickets.
func (m *memStore) remainingPlusActive(eventID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := m.events[eventID].RemainingTickets
	for _, b := range m.bookings {
		if b.EventID == eventID && b.Status == domain.BookingActive {
			sum += b.Quantity
		}
	}
	return sum
}

func approvedEvent(total int, price float64) *domain.Event {
	return &domain.Event{
		ID:               uuid.New(),
		OrganizerID:      uuid.New(),
		Title:            "Concert",
		Venue:            "Main Hall",
		StartsAt:         time.Now().Add(24 * time.Hour),
		Price:            price,
		TotalTickets:     total,
		RemainingTickets: total,
		Status:           domain.EventApproved,
		CreatedAt:        time.Now(),
	}
}

func newTestService(store Store) *Service {
	return NewService(store, nil, observability.NewLogger())
}

func TestCreateBooking_Scenario(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 20)
	store.addEvent(ev)
	svc := newTestService(store)
	userID := uuid.New()

	b, err := svc.CreateBooking(context.Background(), userID, ev.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 60.0, b.TotalPrice)
	assert.Equal(t, domain.BookingActive, b.Status)

	got, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.RemainingTickets)

	_, err = svc.CreateBooking(context.Background(), userID, ev.ID, 8)
	require.ErrorIs(t, err, domain.ErrInsufficientInventory)

	got, err = store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.RemainingTickets)

	cancelled, err := svc.CancelBooking(context.Background(), domain.Identity{UserID: userID, Role: domain.RoleUser}, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	got, err = store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.RemainingTickets)
}

func TestCreateBooking_Preconditions(t *testing.T) {
	store := newMemStore()
	pending := approvedEvent(5, 10)
	pending.Status = domain.EventPending
	store.addEvent(pending)
	svc := newTestService(store)
	userID := uuid.New()

	_, err := svc.CreateBooking(context.Background(), userID, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.CreateBooking(context.Background(), userID, pending.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.CreateBooking(context.Background(), userID, pending.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateBooking(context.Background(), userID, pending.ID, -2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateBooking_NoOversell(t *testing.T) {
	const total = 5
	const callers = 20

	store := newMemStore()
	ev := approvedEvent(total, 15)
	store.addEvent(ev)
	svc := newTestService(store)

	var mu sync.Mutex
	successes, insufficient := 0, 0

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := svc.CreateBooking(ctx, uuid.New(), ev.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientInventory):
				insufficient++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, total, successes)
	assert.Equal(t, callers-total, insufficient)
	assert.Equal(t, total, store.remainingPlusActive(ev.ID))

	got, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RemainingTickets)
}

func TestCancelBooking_Idempotent(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 5)
	store.addEvent(ev)
	svc := newTestService(store)
	userID := uuid.New()
	owner := domain.Identity{UserID: userID, Role: domain.RoleUser}

	b, err := svc.CreateBooking(context.Background(), userID, ev.ID, 4)
	require.NoError(t, err)

	_, err = svc.CancelBooking(context.Background(), owner, b.ID)
	require.NoError(t, err)

	_, err = svc.CancelBooking(context.Background(), owner, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.RemainingTickets, "inventory must be credited exactly once")
}

func TestCancelBooking_ConcurrentDuplicate(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 5)
	store.addEvent(ev)
	svc := newTestService(store)
	userID := uuid.New()
	owner := domain.Identity{UserID: userID, Role: domain.RoleUser}

	b, err := svc.CreateBooking(context.Background(), userID, ev.ID, 2)
	require.NoError(t, err)

	var mu sync.Mutex
	successes := 0
	g := new(errgroup.Group)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := svc.CancelBooking(context.Background(), owner, b.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, successes)
	got, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.RemainingTickets)
}

func TestCancelBooking_Ownership(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 5)
	store.addEvent(ev)
	svc := newTestService(store)
	ownerID := uuid.New()

	b, err := svc.CreateBooking(context.Background(), ownerID, ev.ID, 2)
	require.NoError(t, err)

	stranger := domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}
	_, err = svc.CancelBooking(context.Background(), stranger, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	organizer := domain.Identity{UserID: uuid.New(), Role: domain.RoleOrganizer}
	_, err = svc.CancelBooking(context.Background(), organizer, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingActive, got.Status)
	gotEv, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, gotEv.RemainingTickets)

	admin := domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}
	_, err = svc.CancelBooking(context.Background(), admin, b.ID)
	assert.NoError(t, err)
}

func TestCancelBooking_NotFound(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.CancelBooking(context.Background(), domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateBooking_PriceSnapshot(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 20)
	store.addEvent(ev)
	svc := newTestService(store)
	userID := uuid.New()

	b, err := svc.CreateBooking(context.Background(), userID, ev.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 40.0, b.TotalPrice)

	store.mu.Lock()
	store.events[ev.ID].Price = 99
	store.mu.Unlock()

	listed, err := svc.BookingsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 40.0, listed[0].TotalPrice, "booking keeps the price snapshot")
	assert.Equal(t, 99.0, listed[0].EventPrice, "event join reflects the current price")
}

func TestBookingsForUser_OnlyOwn(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 5)
	store.addEvent(ev)
	svc := newTestService(store)
	alice, bob := uuid.New(), uuid.New()

	_, err := svc.CreateBooking(context.Background(), alice, ev.ID, 1)
	require.NoError(t, err)
	_, err = svc.CreateBooking(context.Background(), bob, ev.ID, 2)
	require.NoError(t, err)

	listed, err := svc.BookingsForUser(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, alice, listed[0].UserID)
	assert.Equal(t, "Concert", listed[0].EventTitle)
}

// flakyStore fails CreateBooking with a transient error a fixed number of
// times before delegating.
type flakyStore struct {
	*memStore
	failures int
	calls    int
}

func (f *flakyStore) CreateBooking(ctx context.Context, b *domain.Booking) error {
	f.calls++
	if f.calls <= f.failures {
		return domain.ErrSerializationFailure
	}
	return f.memStore.CreateBooking(ctx, b)
}

func TestCreateBooking_RetriesTransientConflicts(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 5)
	store.addEvent(ev)
	flaky := &flakyStore{memStore: store, failures: 2}
	svc := newTestService(flaky)

	b, err := svc.CreateBooking(context.Background(), uuid.New(), ev.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, domain.BookingActive, b.Status)
}

func TestCreateBooking_RetriesExhausted(t *testing.T) {
	store := newMemStore()
	ev := approvedEvent(10, 5)
	store.addEvent(ev)
	flaky := &flakyStore{memStore: store, failures: 100}
	svc := newTestService(flaky)

	_, err := svc.CreateBooking(context.Background(), uuid.New(), ev.ID, 1)
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	got, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.RemainingTickets)
}
