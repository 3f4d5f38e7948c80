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

type LocationRepository struct {
	collection *mongo.Collection
}

func NewLocationRepository(db *mongo.Database) *LocationRepository {
	return &LocationRepository{
		collection: db.Collection("locations"),
	}
}

func (lr *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	location.ID = primitive.NewObjectID()
	location.CreatedAt = time.Now()
	location.UpdatedAt = time.Now()

	_, err := lr.collection.InsertOne(ctx, location)
	return err
}

func (lr *LocationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid location ID")
	}

	var location models.Location
	err = lr.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&location)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("location not found")
		}
		return nil, err
	}

	return &location, nil
}

func (lr *LocationRepository) GetByCode(ctx context.Context, code string) (*models.Location, error) {
	var location models.Location
	err := lr.collection.FindOne(ctx, bson.M{"code": code}).Decode(&location)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("location not found")
		}
		return nil, err
	}

	return &location, nil
}

func (lr *LocationRepository) GetAll(ctx context.Context) ([]models.Location, error) {
	cursor, err := lr.collection.Find(ctx,
		bson.M{"isActive": true},
		options.Find().SetSort(bson.M{"code": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	locations := []models.Location{}
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, err
	}

	return locations, nil
}
