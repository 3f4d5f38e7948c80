package repositories

import (
	"context"
	"errors"
	"time"
	"transferdesk/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TemplateRepository struct {
	collection *mongo.Collection
	rules      *mongo.Collection
}

func NewTemplateRepository(db *mongo.Database) *TemplateRepository {
	return &TemplateRepository{
		collection: db.Collection("notification_templates"),
		rules:      db.Collection("notification_rules"),
	}
}

func (tr *TemplateRepository) Create(ctx context.Context, template *models.NotificationTemplate) error {
	template.ID = primitive.NewObjectID()
	template.CreatedAt = time.Now()
	template.UpdatedAt = time.Now()

	_, err := tr.collection.InsertOne(ctx, template)
	return err
}

func (tr *TemplateRepository) GetByID(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid template ID")
	}

	var template models.NotificationTemplate
	err = tr.collection.FindOne(ctx, bson.M{
		"_id":       objectID,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&template)

	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("template not found")
		}
		return nil, err
	}

	return &template, nil
}

func (tr *TemplateRepository) Update(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid template ID")
	}

	update["updatedAt"] = time.Now()

	result, err := tr.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":       objectID,
			"isDeleted": bson.M{"$ne": true},
		},
		bson.M{"$set": update},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("template not found")
	}

	return nil
}

func (tr *TemplateRepository) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid template ID")
	}

	now := time.Now()
	result, err := tr.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"isDeleted": true,
			"deletedAt": now,
			"updatedAt": now,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("template not found")
	}

	return nil
}

func (tr *TemplateRepository) GetTemplates(ctx context.Context, req models.GetTemplatesRequest) ([]models.NotificationTemplate, int64, error) {
	filter := bson.M{"isDeleted": bson.M{"$ne": true}}
	switch req.Status {
	case "active":
		filter["active"] = true
	case "inactive":
		filter["active"] = false
	}

	total, err := tr.collection.CountDocuments(ctx, filter)
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

	cursor, err := tr.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	templates := []models.NotificationTemplate{}
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, 0, err
	}

	return templates, total, nil
}

// CountRulesUsing returns how many non-deleted rules reference a template,
// used to block deleting a template that rules still depend on.
func (tr *TemplateRepository) CountRulesUsing(ctx context.Context, templateID string) (int64, error) {
	return tr.rules.CountDocuments(ctx, bson.M{
		"isDeleted": bson.M{"$ne": true},
		"$or": []bson.M{
			{"channels.email.templateId": templateID},
			{"channels.sms.templateId": templateID},
		},
	})
}
