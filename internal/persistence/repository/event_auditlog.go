package repository

import (
	"context"
	"time"

	"github.com/hilthontt/eventrelay/internal/domain"
	"github.com/hilthontt/eventrelay/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// auditRetention is enforced by a TTL index on received_at.
const auditRetention = 90 * 24 * time.Hour

type eventAuditLogRepository struct {
	db *mongo.Database
}

func NewEventAuditLogRepository(db *mongo.Database) domain.EventAuditRepository {
	return &eventAuditLogRepository{
		db: db,
	}
}

func (r *eventAuditLogRepository) Log(ctx context.Context, log *domain.EventAuditLog) error {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	_, err := collection.InsertOne(ctx, log)
	return err
}

func (r *eventAuditLogRepository) GetByEventType(ctx context.Context, eventType string, from time.Time, to time.Time) ([]domain.EventAuditLog, error) {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	filter := bson.M{
		"event_type": eventType,
		"published_at": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}

	opts := options.Find().SetSort(bson.D{{Key: "published_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.EventAuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *eventAuditLogRepository) GetByService(ctx context.Context, service string, limit int) ([]domain.EventAuditLog, error) {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	filter := bson.M{"service": service}
	opts := options.Find().
		SetSort(bson.D{{Key: "published_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.EventAuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *eventAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	filter := bson.M{
		"received_at": bson.M{
			"$lt": before,
		},
	}

	_, err := collection.DeleteMany(ctx, filter)
	return err
}

func (r *eventAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "published_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "service", Value: 1},
				{Key: "published_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
