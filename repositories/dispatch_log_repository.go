package repositories

import (
	"context"
	"time"
	"transferdesk/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DispatchLogRepository persists per-item dispatch outcomes. Writes come
// from the audit worker, off the event intake path.
type DispatchLogRepository struct {
	collection *mongo.Collection
}

func NewDispatchLogRepository(db *mongo.Database) *DispatchLogRepository {
	return &DispatchLogRepository{
		collection: db.Collection("dispatch_logs"),
	}
}

func (dr *DispatchLogRepository) InsertOutcomes(ctx context.Context, reportID string, outcomes []models.DispatchOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(outcomes))
	now := time.Now()
	for _, outcome := range outcomes {
		docs = append(docs, models.DispatchLog{
			ReportID:        reportID,
			DispatchOutcome: outcome,
			CreatedAt:       now,
		})
	}

	_, err := dr.collection.InsertMany(ctx, docs)
	return err
}

func (dr *DispatchLogRepository) GetLogs(ctx context.Context, req models.GetDispatchLogsRequest) ([]models.DispatchLog, int64, error) {
	filter := bson.M{}
	if req.EventType != "" {
		filter["eventType"] = req.EventType
	}
	if req.RuleID != "" {
		filter["ruleId"] = req.RuleID
	}
	if req.Channel != "" {
		filter["channel"] = req.Channel
	}
	if req.Status != "" {
		filter["status"] = req.Status
	}

	total, err := dr.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := dr.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	logs := []models.DispatchLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (dr *DispatchLogRepository) GetDeliveryStats(ctx context.Context, since time.Time) (*models.DeliveryStats, error) {
	match := bson.M{}
	if !since.IsZero() {
		match["createdAt"] = bson.M{"$gte": since}
	}

	cursor, err := dr.collection.Aggregate(ctx, []bson.M{
		{"$match": match},
		{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := &models.DeliveryStats{ChannelCounts: make(map[string]int64)}
	for cursor.Next(ctx) {
		var group struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&group); err != nil {
			continue
		}
		stats.Total += group.Count
		switch models.DispatchStatus(group.Status) {
		case models.StatusSent:
			stats.Sent = group.Count
		case models.StatusFailed:
			stats.Failed = group.Count
		case models.StatusSkipped:
			stats.Skipped = group.Count
		case models.StatusTimeout:
			stats.TimedOut = group.Count
		}
	}

	byChannel, err := dr.collection.Aggregate(ctx, []bson.M{
		{"$match": match},
		{"$group": bson.M{"_id": "$channel", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer byChannel.Close(ctx)

	for byChannel.Next(ctx) {
		var group struct {
			Channel string `bson:"_id"`
			Count   int64  `bson:"count"`
		}
		if err := byChannel.Decode(&group); err != nil {
			continue
		}
		stats.ChannelCounts[group.Channel] = group.Count
	}

	return stats, nil
}
