package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"transferdesk/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	activeRuleCachePrefix = "rules:active:"
	activeRuleCacheTTL    = 60 * time.Second
)

// RuleRepository persists notification rules in MongoDB. Active rules per
// event type are cached in Redis so event intake does not hit the database
// on every business transaction; every write invalidates the cache.
type RuleRepository struct {
	collection *mongo.Collection
	redis      *redis.Client
}

func NewRuleRepository(db *mongo.Database, redisClient *redis.Client) *RuleRepository {
	return &RuleRepository{
		collection: db.Collection("notification_rules"),
		redis:      redisClient,
	}
}

func (rr *RuleRepository) Create(ctx context.Context, rule *models.NotificationRule) error {
	rule.ID = primitive.NewObjectID()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	_, err := rr.collection.InsertOne(ctx, rule)
	if err != nil {
		return err
	}

	rr.invalidateCache(ctx, rule.Event)
	return nil
}

func (rr *RuleRepository) GetByID(ctx context.Context, id string) (*models.NotificationRule, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid rule ID")
	}

	var rule models.NotificationRule
	err = rr.collection.FindOne(ctx, bson.M{
		"_id":       objectID,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&rule)

	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("rule not found")
		}
		return nil, err
	}

	return &rule, nil
}

func (rr *RuleRepository) Update(ctx context.Context, id string, update bson.M) error {
	rule, err := rr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	update["updatedAt"] = time.Now()

	result, err := rr.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":       rule.ID,
			"isDeleted": bson.M{"$ne": true},
		},
		bson.M{"$set": update},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("rule not found")
	}

	rr.invalidateCache(ctx, rule.Event)
	return nil
}

func (rr *RuleRepository) Delete(ctx context.Context, id string) error {
	rule, err := rr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := rr.collection.UpdateOne(
		ctx,
		bson.M{"_id": rule.ID},
		bson.M{"$set": bson.M{
			"isDeleted": true,
			"deletedAt": now,
			"updatedAt": now,
			"active":    false,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("rule not found")
	}

	rr.invalidateCache(ctx, rule.Event)
	return nil
}

func (rr *RuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	return rr.Update(ctx, id, bson.M{"active": active})
}

// GetActiveByEvent returns the active rules bound to an event type, from
// the Redis snapshot when present. A cache failure falls through to the
// database; events must not be dropped because Redis is down.
func (rr *RuleRepository) GetActiveByEvent(ctx context.Context, eventType models.EventType) ([]models.NotificationRule, error) {
	cacheKey := activeRuleCachePrefix + string(eventType)

	if rr.redis != nil {
		if cached, err := rr.redis.Get(ctx, cacheKey).Result(); err == nil {
			var rules []models.NotificationRule
			if err := json.Unmarshal([]byte(cached), &rules); err == nil {
				return rules, nil
			}
		}
	}

	cursor, err := rr.collection.Find(ctx, bson.M{
		"event":     eventType,
		"active":    true,
		"isDeleted": bson.M{"$ne": true},
	}, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rules := []models.NotificationRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, err
	}

	if rr.redis != nil {
		if data, err := json.Marshal(rules); err == nil {
			if err := rr.redis.Set(ctx, cacheKey, data, activeRuleCacheTTL).Err(); err != nil {
				logrus.Warnf("Failed to cache active rules for %s: %v", eventType, err)
			}
		}
	}

	return rules, nil
}

func (rr *RuleRepository) GetRules(ctx context.Context, req models.GetRulesRequest) ([]models.NotificationRule, int64, error) {
	filter := bson.M{"isDeleted": bson.M{"$ne": true}}
	if req.Event != "" {
		filter["event"] = req.Event
	}
	switch req.Status {
	case "active":
		filter["active"] = true
	case "inactive":
		filter["active"] = false
	}

	total, err := rr.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := rr.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	rules := []models.NotificationRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

// IncrementTriggerCount bumps a rule's trigger counter after an event it
// matched was dispatched. Called from the audit worker, off the intake
// path, so it deliberately skips cache invalidation.
func (rr *RuleRepository) IncrementTriggerCount(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid rule ID")
	}

	_, err = rr.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$inc": bson.M{"triggerCount": 1},
			"$set": bson.M{"lastTriggered": time.Now()},
		},
	)
	return err
}

func (rr *RuleRepository) GetRuleStats(ctx context.Context) (*models.RuleStats, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"isDeleted": bson.M{"$ne": true}}},
		{"$group": bson.M{
			"_id":      nil,
			"total":    bson.M{"$sum": 1},
			"active":   bson.M{"$sum": bson.M{"$cond": []interface{}{"$active", 1, 0}}},
			"triggers": bson.M{"$sum": "$triggerCount"},
		}},
	}

	cursor, err := rr.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := &models.RuleStats{EventCounts: make(map[string]int64)}
	var row struct {
		Total    int64 `bson:"total"`
		Active   int64 `bson:"active"`
		Triggers int64 `bson:"triggers"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
	}
	stats.TotalRules = row.Total
	stats.ActiveRules = row.Active
	stats.InactiveRules = row.Total - row.Active
	stats.TotalTriggers = row.Triggers

	byEvent, err := rr.collection.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"isDeleted": bson.M{"$ne": true}, "active": true}},
		{"$group": bson.M{"_id": "$event", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer byEvent.Close(ctx)

	for byEvent.Next(ctx) {
		var group struct {
			Event string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := byEvent.Decode(&group); err != nil {
			continue
		}
		stats.EventCounts[group.Event] = group.Count
	}

	return stats, nil
}

func (rr *RuleRepository) invalidateCache(ctx context.Context, eventType models.EventType) {
	if rr.redis == nil {
		return
	}
	if err := rr.redis.Del(ctx, activeRuleCachePrefix+string(eventType)).Err(); err != nil {
		logrus.Warnf("Failed to invalidate rule cache for %s: %v", eventType, err)
	}
}
