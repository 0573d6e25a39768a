package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/eventhall/ticketing/internal/booking"
	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/event"
	"github.com/eventhall/ticketing/internal/idempotency"
	"github.com/eventhall/ticketing/internal/user"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handlers struct {
	bookings *booking.Service
	events   *event.Service
	users    *user.Service
	idemp    *idempotency.Idempotency
}

func NewHandlers(bookings *booking.Service, events *event.Service, users *user.Service, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		bookings: bookings,
		events:   events,
		users:    users,
		idemp:    idemp,
	}
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInsufficientInventory):
		http.Error(w, "not enough tickets remaining", http.StatusConflict)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrUnauthenticated):
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnavailable):
		http.Error(w, "temporarily unavailable, try again", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func bookingPayload(b *domain.Booking) map[string]interface{} {
	payload := map[string]interface{}{
		"booking_id":  b.ID,
		"event_id":    b.EventID,
		"quantity":    b.Quantity,
		"total_price": b.TotalPrice,
		"status":      b.Status,
		"booked_at":   b.BookedAt.Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		payload["cancelled_at"] = b.CancelledAt.Format(time.RFC3339)
	}
	return payload
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := h.users.Register(r.Context(), req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id": u.ID,
		"role":    u.Role,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token})
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListApproved(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// GetEvent returns one event's public view. Events still in moderation are
// indistinguishable from absent ones.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	ev, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ev.Open() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":          ev.ID,
		"title":             ev.Title,
		"venue":             ev.Venue,
		"starts_at":         ev.StartsAt.Format(time.RFC3339),
		"price":             ev.Price,
		"total_tickets":     ev.TotalTickets,
		"remaining_tickets": ev.RemainingTickets,
	})
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		Title        string    `json:"title"`
		Venue        string    `json:"venue"`
		StartsAt     time.Time `json:"starts_at"`
		Price        float64   `json:"price"`
		TotalTickets int       `json:"total_tickets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ev, err := h.events.Create(r.Context(), identity, event.CreateParams{
		Title:        req.Title,
		Venue:        req.Venue,
		StartsAt:     req.StartsAt,
		Price:        req.Price,
		TotalTickets: req.TotalTickets,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"event_id": ev.ID,
		"status":   ev.Status,
	})
}

func (h *Handlers) moderateEvent(w http.ResponseWriter, r *http.Request, approve bool) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.events.Moderate(r.Context(), identity, eventID, approve); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	h.moderateEvent(w, r, true)
}

func (h *Handlers) DeclineEvent(w http.ResponseWriter, r *http.Request) {
	h.moderateEvent(w, r, false)
}

func (h *Handlers) SetEventPrice(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.events.SetPrice(r.Context(), identity, eventID, req.Price); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	// Reserve the key before running the mutation: a retried request
	// racing its original must never book twice.
	key := r.Header.Get("Idempotency-Key")
	claimed, replay, err := h.idemp.Begin(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if replay != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(replay.Status)
		w.Write(replay.Result)
		return
	}
	if !claimed {
		http.Error(w, "request with this Idempotency-Key is in flight", http.StatusConflict)
		return
	}

	var req struct {
		EventID  uuid.UUID `json:"event_id"`
		Quantity int       `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if abortErr := h.idemp.Abort(r.Context(), key); abortErr != nil {
			LoggerFrom(r.Context()).WithError(abortErr).Error("failed to release idempotency key")
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.bookings.CreateBooking(r.Context(), identity.UserID, req.EventID, req.Quantity)
	if err != nil {
		if abortErr := h.idemp.Abort(r.Context(), key); abortErr != nil {
			LoggerFrom(r.Context()).WithError(abortErr).Error("failed to release idempotency key")
		}
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, bookingPayload(b))
	if err := h.idemp.Finish(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
		LoggerFrom(r.Context()).WithError(err).Error("failed to store idempotent response")
	}
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.bookings.CancelBooking(r.Context(), identity, bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingPayload(b))
}

func (h *Handlers) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	bookings, err := h.bookings.BookingsForUser(r.Context(), identity.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(bookings))
	for i := range bookings {
		payload := bookingPayload(&bookings[i].Booking)
		payload["event"] = map[string]interface{}{
			"title":     bookings[i].EventTitle,
			"venue":     bookings[i].EventVenue,
			"starts_at": bookings[i].EventStarts.Format(time.RFC3339),
			"price":     bookings[i].EventPrice,
		}
		items = append(items, payload)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": items})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
