package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	// CRDB can also report the conflict at commit time
	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}
	return nil
}

// markUnavailable classifies failures on plain pool queries. A PgError means
// the server answered; anything else is a connectivity failure the caller
// should surface as Unavailable.
func markUnavailable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

// CreateBooking applies the booking atomically: the inventory decrement is a
// single guarded UPDATE, so two callers racing for the last tickets can never
// both succeed. When the guard rejects, the event row is re-read inside the
// same transaction to report which precondition failed.
func (r *Repository) CreateBooking(ctx context.Context, b *domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE events SET remaining_tickets = remaining_tickets - $2
			WHERE id = $1 AND status = 'APPROVED' AND remaining_tickets >= $2
		`, b.EventID, b.Quantity)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			var status domain.EventStatus
			var remaining int
			err := tx.QueryRow(ctx, `
				SELECT status, remaining_tickets FROM events WHERE id = $1
			`, b.EventID).Scan(&status, &remaining)
			if err == pgx.ErrNoRows {
				return domain.ErrNotFound
			}
			if err != nil {
				return err
			}
			if status != domain.EventApproved {
				return domain.ErrInvalidState
			}
			return domain.ErrInsufficientInventory
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bookings (id, user_id, event_id, quantity, total_price, status, booked_at)
			VALUES ($1, $2, $3, $4, $5, 'ACTIVE', $6)
		`, b.ID, b.UserID, b.EventID, b.Quantity, b.TotalPrice, b.BookedAt)
		if err != nil {
			return err
		}

		return r.insertBookingOutbox(ctx, tx, "booking.created", b)
	})
}

// CancelBooking flips ACTIVE -> CANCELLED and returns the inventory in one
// transaction. The status guard on the UPDATE makes a duplicate cancellation
// affect zero rows, so the increment runs at most once per booking. The
// increment is capped at total_tickets as a guard against corrupted counters.
func (r *Repository) CancelBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (*domain.Booking, error) {
	var b domain.Booking
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE bookings SET status = 'CANCELLED', cancelled_at = $2
			WHERE id = $1 AND status = 'ACTIVE'
			RETURNING id, user_id, event_id, quantity, total_price, status, booked_at, cancelled_at
		`, bookingID, at).Scan(&b.ID, &b.UserID, &b.EventID, &b.Quantity, &b.TotalPrice, &b.Status, &b.BookedAt, &b.CancelledAt)
		if err == pgx.ErrNoRows {
			var status domain.BookingStatus
			err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, bookingID).Scan(&status)
			if err == pgx.ErrNoRows {
				return domain.ErrNotFound
			}
			if err != nil {
				return err
			}
			return domain.ErrInvalidState
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE events
			SET remaining_tickets = LEAST(total_tickets, remaining_tickets + $2)
			WHERE id = $1
		`, b.EventID, b.Quantity)
		if err != nil {
			return err
		}

		return r.insertBookingOutbox(ctx, tx, "booking.cancelled", &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, event_id, quantity, total_price, status, booked_at, cancelled_at
		FROM bookings WHERE id = $1
	`, bookingID).Scan(&b.ID, &b.UserID, &b.EventID, &b.Quantity, &b.TotalPrice, &b.Status, &b.BookedAt, &b.CancelledAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, markUnavailable(err)
	}
	return &b, nil
}

func (r *Repository) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingWithEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.user_id, b.event_id, b.quantity, b.total_price, b.status, b.booked_at, b.cancelled_at,
		       e.title, e.venue, e.starts_at, e.price
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE b.user_id = $1
		ORDER BY b.booked_at DESC
	`, userID)
	if err != nil {
		return nil, markUnavailable(err)
	}
	defer rows.Close()

	var out []domain.BookingWithEvent
	for rows.Next() {
		var bw domain.BookingWithEvent
		err := rows.Scan(&bw.ID, &bw.UserID, &bw.EventID, &bw.Quantity, &bw.TotalPrice, &bw.Status, &bw.BookedAt, &bw.CancelledAt,
			&bw.EventTitle, &bw.EventVenue, &bw.EventStarts, &bw.EventPrice)
		if err != nil {
			return nil, err
		}
		out = append(out, bw)
	}
	if err := rows.Err(); err != nil {
		return nil, markUnavailable(err)
	}
	return out, nil
}

func (r *Repository) CreateEvent(ctx context.Context, e *domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, organizer_id, title, venue, starts_at, price, total_tickets, remaining_tickets, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.OrganizerID, e.Title, e.Venue, e.StartsAt, e.Price, e.TotalTickets, e.RemainingTickets, e.Status, e.CreatedAt)
	return err
}

func (r *Repository) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	var e domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, organizer_id, title, venue, starts_at, price, total_tickets, remaining_tickets, status, created_at
		FROM events WHERE id = $1
	`, eventID).Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Venue, &e.StartsAt, &e.Price, &e.TotalTickets, &e.RemainingTickets, &e.Status, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, markUnavailable(err)
	}
	return &e, nil
}

// SetEventStatus moves a pending event to APPROVED or DECLINED. The PENDING
// guard makes the moderation decision single-shot.
func (r *Repository) SetEventStatus(ctx context.Context, eventID uuid.UUID, status domain.EventStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE events SET status = $2 WHERE id = $1 AND status = 'PENDING'
	`, eventID, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var current domain.EventStatus
		err := r.pool.QueryRow(ctx, `SELECT status FROM events WHERE id = $1`, eventID).Scan(&current)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}

// UpdateEventPrice changes the price for future bookings only; existing
// bookings keep their total_price snapshot.
func (r *Repository) UpdateEventPrice(ctx context.Context, eventID uuid.UUID, price float64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE events SET price = $2 WHERE id = $1
	`, eventID, price)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == UniqueViolationCode {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, markUnavailable(err)
	}
	return &u, nil
}
