package mongo

import (
	"context"
	"time"

	"github.com/eventhall/ticketing/internal/domain"
	"github.com/eventhall/ticketing/internal/observability"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CatalogRepository is a denormalized read model of events for public
// listings. It is written whenever an event is created or moderated; the
// authoritative inventory lives in the relational store.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("events"),
		logger: logger,
	}
}

type EventDoc struct {
	ID        uuid.UUID `bson:"_id"`
	Title     string    `bson:"title"`
	Venue     string    `bson:"venue"`
	StartsAt  time.Time `bson:"starts_at"`
	Price     float64   `bson:"price"`
	Status    string    `bson:"status"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func docFromEvent(e *domain.Event) EventDoc {
	return EventDoc{
		ID:        e.ID,
		Title:     e.Title,
		Venue:     e.Venue,
		StartsAt:  e.StartsAt,
		Price:     e.Price,
		Status:    string(e.Status),
		UpdatedAt: time.Now().UTC(),
	}
}

func (c *CatalogRepository) UpsertEvent(ctx context.Context, e *domain.Event) error {
	doc := docFromEvent(e)
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to upsert catalog event")
		return err
	}
	return nil
}

func (c *CatalogRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.EventStatus) error {
	_, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to update catalog status")
		return err
	}
	return nil
}

// ListApproved returns the public catalog: approved events, soonest first.
func (c *CatalogRepository) ListApproved(ctx context.Context) ([]EventDoc, error) {
	cursor, err := c.coll.Find(
		ctx,
		bson.M{"status": string(domain.EventApproved)},
		options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}}),
	)
	if err != nil {
		c.logger.WithError(err).Error("failed to list catalog events")
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []EventDoc
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
