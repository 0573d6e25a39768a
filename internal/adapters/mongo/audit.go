package mongo

import (
	"context"
	"time"

	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogAction(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogBooking(ctx context.Context, action string, b *domain.Booking) error {
	data := map[string]interface{}{
		"booking_id":  b.ID,
		"event_id":    b.EventID,
		"quantity":    b.Quantity,
		"total_price": b.TotalPrice,
		"status":      b.Status,
	}
	return a.LogAction(ctx, action, b.UserID, data)
}

func (a *AuditLogger) LogEventModeration(ctx context.Context, adminID, eventID uuid.UUID, status domain.EventStatus) error {
	data := map[string]interface{}{
		"event_id": eventID,
		"status":   status,
	}
	return a.LogAction(ctx, "event."+string(status), adminID, data)
}
