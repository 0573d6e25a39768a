package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventhall/ticketing/internal/adapters/crdb"
	mongoadapter "github.com/eventhall/ticketing/internal/adapters/mongo"
	"github.com/eventhall/ticketing/internal/adapters/rabbit"
	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Service owns the event lifecycle outside of booking: organizers submit
// events, admins approve or decline them, the public catalog mirrors the
// result. Inventory mutation stays with the booking engine.
type Service struct {
	repo    *crdb.Repository
	catalog *mongoadapter.CatalogRepository
	audit   *mongoadapter.AuditLogger
	pub     *rabbit.Publisher
	logger  observability.Logger
}

func NewService(repo *crdb.Repository, catalog *mongoadapter.CatalogRepository, audit *mongoadapter.AuditLogger, pub *rabbit.Publisher, logger observability.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, audit: audit, pub: pub, logger: logger}
}

type CreateParams struct {
	Title        string
	Venue        string
	StartsAt     time.Time
	Price        float64
	TotalTickets int
}

func (s *Service) Create(ctx context.Context, caller domain.Identity, p CreateParams) (*domain.Event, error) {
	if !caller.CanCreateEvents() {
		return nil, fmt.Errorf("%w: organizer role required", domain.ErrForbidden)
	}

	ev, err := domain.NewEvent(caller.UserID, p.Title, p.Venue, p.StartsAt, p.Price, p.TotalTickets)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	if err := s.catalog.UpsertEvent(ctx, ev); err != nil {
		s.logger.WithError(err).Error("failed to project event to catalog")
	}
	s.logger.WithField("event_id", ev.ID).Info("event submitted")
	return ev, nil
}

// Moderate applies the admin approval decision. Only PENDING events can be
// moderated; the decision is single-shot.
func (s *Service) Moderate(ctx context.Context, caller domain.Identity, eventID uuid.UUID, approve bool) error {
	if !caller.CanModerateEvents() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}

	status := domain.EventDeclined
	if approve {
		status = domain.EventApproved
	}
	if err := s.repo.SetEventStatus(ctx, eventID, status); err != nil {
		return fmt.Errorf("set event status: %w", err)
	}

	if err := s.catalog.SetStatus(ctx, eventID, status); err != nil {
		s.logger.WithError(err).Error("failed to update catalog status")
	}
	if err := s.audit.LogEventModeration(ctx, caller.UserID, eventID, status); err != nil {
		s.logger.WithError(err).Error("failed to audit moderation")
	}
	s.publishModerated(ctx, eventID, status)
	return nil
}

// SetPrice updates the price charged to future bookings. Existing bookings
// keep their snapshot.
func (s *Service) SetPrice(ctx context.Context, caller domain.Identity, eventID uuid.UUID, price float64) error {
	if !caller.CanModerateEvents() {
		return fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	if price < 0 {
		return fmt.Errorf("%w: price must be >= 0", domain.ErrInvalidInput)
	}
	if err := s.repo.UpdateEventPrice(ctx, eventID, price); err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

func (s *Service) ListApproved(ctx context.Context) ([]mongoadapter.EventDoc, error) {
	return s.catalog.ListApproved(ctx)
}

func (s *Service) Get(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	return s.repo.GetEvent(ctx, eventID)
}

func (s *Service) publishModerated(ctx context.Context, eventID uuid.UUID, status domain.EventStatus) {
	if s.pub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"event_id": eventID, "status": status})
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}
	key := "event.approved"
	if status == domain.EventDeclined {
		key = "event.declined"
	}
	if err := s.pub.Publish(ctx, key, msg); err != nil {
		s.logger.WithError(err).Error("failed to publish moderation event")
	}
}
