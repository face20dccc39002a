// Package mongo provides the MongoDB-backed audit archive. The archive is a
// read model fed from the audit event stream; it is never part of the
// ledger's atomic unit.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/core-banking/ledger/internal/domain/shared"
)

// auditDocument is the stored shape of an archived event. Writes and reads
// share it so the bson keys cannot drift apart.
type auditDocument struct {
	Action     shared.OperationKind `bson:"action"`
	EntityType string               `bson:"entity_type"`
	EntityID   uuid.UUID            `bson:"entity_id"`
	Message    string               `bson:"message"`
	CreatedBy  string               `bson:"created_by"`
	CreatedAt  time.Time            `bson:"created_at"`
}

func documentFromEvent(event *shared.AuditEvent) auditDocument {
	return auditDocument{
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Message:    event.Message,
		CreatedBy:  event.CreatedBy,
		CreatedAt:  event.CreatedAt,
	}
}

func (d auditDocument) toEvent() *shared.AuditEvent {
	return &shared.AuditEvent{
		Action:     d.Action,
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		Message:    d.Message,
		CreatedBy:  d.CreatedBy,
		CreatedAt:  d.CreatedAt,
	}
}

// AuditLogRepository persists audit events received from the event stream
type AuditLogRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewAuditLogRepository creates a new MongoDB audit log repository
func NewAuditLogRepository(logger *slog.Logger, db *mongo.Database, collectionName string) *AuditLogRepository {
	return &AuditLogRepository{
		collection: db.Collection(collectionName),
		logger:     logger,
	}
}

// Archive stores an audit event, replacing any previous copy with the same
// entity id. Upserting keeps the archive idempotent under at-least-once
// delivery.
func (r *AuditLogRepository) Archive(ctx context.Context, event *shared.AuditEvent) error {
	filter := bson.M{"entity_id": event.EntityID}
	update := bson.M{"$set": documentFromEvent(event)}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to archive audit event",
			"entity_id", event.EntityID.String(),
			"error", err)
		return fmt.Errorf("failed to archive audit event: %w", err)
	}

	return nil
}

// GetByEntityID retrieves an archived audit event
func (r *AuditLogRepository) GetByEntityID(ctx context.Context, entityID uuid.UUID) (*shared.AuditEvent, error) {
	filter := bson.M{"entity_id": entityID}

	var doc auditDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		r.logger.Error("Failed to get audit event", "entity_id", entityID.String(), "error", err)
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}

	return doc.toEvent(), nil
}

// ListRecent retrieves the most recently created audit events
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*shared.AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list audit events", "error", err)
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*shared.AuditEvent
	for cursor.Next(ctx) {
		var doc auditDocument
		if err := cursor.Decode(&doc); err != nil {
			r.logger.Error("Failed to decode audit event", "error", err)
			return nil, fmt.Errorf("failed to decode audit event: %w", err)
		}
		events = append(events, doc.toEvent())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over audit events: %w", err)
	}

	return events, nil
}
